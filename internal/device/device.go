/**
 * Compute Device Resolution
 *
 * Resolves the configured device string ("auto", "cpu", "cuda", "cuda:N")
 * to the device the inference backend should run on. CUDA availability is
 * probed via the NVIDIA driver procfs entry; an explicit cuda request
 * without a usable driver falls back to CPU with a warning instead of
 * failing startup.
 */

package device

import (
	"fmt"
	"os"
	"strings"

	"github.com/formlens/docextract/internal/logging"
)

const nvidiaDriverPath = "/proc/driver/nvidia/version"

// Device is a resolved compute target.
type Device struct {
	Type string // "cpu" or "cuda"
	Name string // full identifier, e.g. "cpu", "cuda", "cuda:1"
}

func (d Device) String() string {
	return d.Name
}

// IsCUDA reports whether the device targets a GPU.
func (d Device) IsCUDA() bool {
	return d.Type == "cuda"
}

// Resolve maps a requested device string to an available device.
func Resolve(requested string) Device {
	logger := logging.NewLogger("Device")
	req := strings.ToLower(strings.TrimSpace(requested))

	switch {
	case req == "" || req == "auto":
		if cudaAvailable() {
			logger.Info("Auto-selected CUDA device")
			return Device{Type: "cuda", Name: "cuda"}
		}
		logger.Info("Auto-selected CPU device")
		return Device{Type: "cpu", Name: "cpu"}

	case req == "cpu":
		return Device{Type: "cpu", Name: "cpu"}

	case req == "cuda" || strings.HasPrefix(req, "cuda:"):
		if cudaAvailable() {
			return Device{Type: "cuda", Name: req}
		}
		logger.Warn("CUDA requested but no NVIDIA driver detected, falling back to CPU", "requested", requested)
		return Device{Type: "cpu", Name: "cpu"}

	default:
		logger.Warn(fmt.Sprintf("Unknown device %q, falling back to CPU", requested))
		return Device{Type: "cpu", Name: "cpu"}
	}
}

// cudaAvailable reports whether the NVIDIA kernel driver is loaded.
func cudaAvailable() bool {
	_, err := os.Stat(nvidiaDriverPath)
	return err == nil
}
