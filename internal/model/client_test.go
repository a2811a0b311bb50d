/**
 * Remote Inference Client Tests
 *
 * Runs the adapter against a stub inference server:
 * - Request payload carries normalized boxes, PNG image and the token cap
 * - Null word ids map to the NoWord sentinel
 * - Server failures and misaligned responses become inference errors
 */

package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/ocr"
)

// TestRemoteAdapterInfer verifies the full request/response exchange.
func TestRemoteAdapterInfer(t *testing.T) {
	var captured inferRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/infer" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content type: got %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		json.NewEncoder(w).Encode(inferResponse{
			Predictions: []int{0, 3, 5, 0},
			Confidences: []float64{0.99, 0.97, 0.91, 0.99},
			WordIDs:     []*int{nil, intPtr(0), intPtr(1), nil},
		})
	}))
	defer srv.Close()

	adapter := NewRemoteAdapter(srv.URL, "layoutlmv3-funsd", "cpu")
	words := []ocr.Result{
		{Text: "Name:", BBox: document.BoundingBox{X1: 20, Y1: 10, X2: 100, Y2: 50}, Confidence: 0.99},
		{Text: "John", BBox: document.BoundingBox{X1: 120, Y1: 10, X2: 180, Y2: 50}, Confidence: 0.98},
	}

	result, err := adapter.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 100)), words)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	// Request payload
	if captured.Model != "layoutlmv3-funsd" || captured.Device != "cpu" {
		t.Errorf("Model/device: got %q/%q", captured.Model, captured.Device)
	}
	if captured.MaxLength != MaxSequenceLength {
		t.Errorf("Max length: got %d, want %d", captured.MaxLength, MaxSequenceLength)
	}
	if len(captured.Words) != 2 || captured.Words[0] != "Name:" {
		t.Errorf("Words: got %v", captured.Words)
	}
	wantBoxes := [][4]int{{100, 100, 500, 500}, {600, 100, 900, 500}}
	for i, want := range wantBoxes {
		if captured.Boxes[i] != want {
			t.Errorf("Box %d: got %v, want %v", i, captured.Boxes[i], want)
		}
	}

	imgData, err := base64.StdEncoding.DecodeString(captured.Image)
	if err != nil {
		t.Fatalf("Image field not base64: %v", err)
	}
	decoded, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil || format != "png" {
		t.Fatalf("Image field not PNG: format %q, err %v", format, err)
	}
	if decoded.Bounds().Dx() != 200 || decoded.Bounds().Dy() != 100 {
		t.Errorf("Encoded image: got %dx%d, want 200x100", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}

	// Response mapping
	wantIDs := []int{NoWord, 0, 1, NoWord}
	for i, want := range wantIDs {
		if result.WordIDs[i] != want {
			t.Errorf("WordID %d: got %d, want %d", i, result.WordIDs[i], want)
		}
	}
	if len(result.Predictions) != 4 || result.Predictions[1] != 3 {
		t.Errorf("Predictions: got %v", result.Predictions)
	}
	if result.Words[1] != "John" || result.Boxes[1] != words[1].BBox {
		t.Errorf("Word alignment: got %q %v", result.Words[1], result.Boxes[1])
	}
	if result.ImageWidth != 200 || result.ImageHeight != 100 {
		t.Errorf("Image dimensions: got %dx%d, want 200x100", result.ImageWidth, result.ImageHeight)
	}
	t.Logf("✅ Exchanged %d tokens for %d words", len(result.Predictions), len(words))
}

// TestRemoteAdapterFailures covers server errors, reported errors and
// misaligned responses.
func TestRemoteAdapterFailures(t *testing.T) {
	testCases := []struct {
		name        string
		handler     http.HandlerFunc
		wantMessage string
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model exploded", http.StatusInternalServerError)
			},
			wantMessage: "status 500",
		},
		{
			name: "error field in body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(inferResponse{Error: "tokenizer failure"})
			},
			wantMessage: "tokenizer failure",
		},
		{
			name: "misaligned arrays",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(inferResponse{
					Predictions: []int{1, 2},
					Confidences: []float64{0.9},
					WordIDs:     []*int{intPtr(0), intPtr(1)},
				})
			},
			wantMessage: "misaligned",
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			wantMessage: "failed to parse",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			adapter := NewRemoteAdapter(srv.URL, "layoutlmv3-funsd", "cpu")
			_, err := adapter.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)), []ocr.Result{
				{Text: "word", BBox: document.BoundingBox{X1: 1, Y1: 1, X2: 50, Y2: 20}},
			})

			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.IsCode(err, errors.ErrorInferenceFailed) {
				t.Errorf("Error code: got %s, want %s", errors.CodeOf(err), errors.ErrorInferenceFailed)
			}
			if !strings.Contains(err.Error(), tc.wantMessage) {
				t.Errorf("Error %q does not mention %q", err.Error(), tc.wantMessage)
			}
		})
	}
}

// TestRemoteAdapterUnreachable verifies the connection failure path.
func TestRemoteAdapterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	adapter := NewRemoteAdapter(srv.URL, "layoutlmv3-funsd", "cpu")
	_, err := adapter.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)), []ocr.Result{
		{Text: "word", BBox: document.BoundingBox{X1: 1, Y1: 1, X2: 50, Y2: 20}},
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.IsCode(err, errors.ErrorInferenceFailed) {
		t.Errorf("Error code: got %s, want %s", errors.CodeOf(err), errors.ErrorInferenceFailed)
	}

	if adapter.ModelName() != "layoutlmv3-funsd" {
		t.Errorf("ModelName: got %q", adapter.ModelName())
	}
	if err := adapter.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// Helper functions

func intPtr(v int) *int {
	return &v
}
