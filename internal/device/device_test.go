/**
 * Device Resolution Tests
 *
 * CUDA expectations adapt to the host: with no NVIDIA driver present the
 * resolver must fall back to CPU rather than fail.
 */

package device

import "testing"

// TestResolve verifies request mapping for every accepted device string.
func TestResolve(t *testing.T) {
	hasCUDA := cudaAvailable()
	t.Logf("NVIDIA driver present: %v", hasCUDA)

	cudaOr := func(cpuFallback string, cudaName string) string {
		if hasCUDA {
			return cudaName
		}
		return cpuFallback
	}

	testCases := []struct {
		name      string
		requested string
		wantName  string
	}{
		{name: "explicit cpu", requested: "cpu", wantName: "cpu"},
		{name: "empty auto-selects", requested: "", wantName: cudaOr("cpu", "cuda")},
		{name: "auto", requested: "auto", wantName: cudaOr("cpu", "cuda")},
		{name: "auto uppercase", requested: "AUTO", wantName: cudaOr("cpu", "cuda")},
		{name: "cuda", requested: "cuda", wantName: cudaOr("cpu", "cuda")},
		{name: "cuda with index", requested: "cuda:1", wantName: cudaOr("cpu", "cuda:1")},
		{name: "unknown falls back", requested: "tpu", wantName: "cpu"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Resolve(tc.requested)
			if d.Name != tc.wantName {
				t.Errorf("Name: got %q, want %q", d.Name, tc.wantName)
			}
			if d.String() != d.Name {
				t.Errorf("String: got %q, want %q", d.String(), d.Name)
			}

			wantCUDA := d.Type == "cuda"
			if d.IsCUDA() != wantCUDA {
				t.Errorf("IsCUDA: got %v for type %q", d.IsCUDA(), d.Type)
			}
		})
	}
}

// TestDeviceTypeConsistency verifies that name and type never disagree.
func TestDeviceTypeConsistency(t *testing.T) {
	for _, requested := range []string{"cpu", "auto", "cuda", "cuda:0", "weird"} {
		d := Resolve(requested)
		switch d.Type {
		case "cpu":
			if d.Name != "cpu" {
				t.Errorf("CPU device named %q", d.Name)
			}
		case "cuda":
			if d.Name != "cuda" && d.Name[:5] != "cuda:" {
				t.Errorf("CUDA device named %q", d.Name)
			}
		default:
			t.Errorf("Unknown device type %q", d.Type)
		}
	}
}
