/**
 * Remote Inference Client
 *
 * Talks to a LayoutLMv3 inference server over HTTP. The server owns the
 * tokenizer and model weights; this client prepares the word/box payload,
 * normalizes geometry into model space, and aligns the returned token
 * stream with the words it sent.
 */

package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/logging"
	"github.com/formlens/docextract/internal/ocr"
)

// RemoteAdapter is an Adapter backed by an inference server.
type RemoteAdapter struct {
	baseURL    string
	modelName  string
	device     string
	httpClient *http.Client
	logger     *logging.Logger
}

// inferRequest is the request body for the /infer endpoint.
type inferRequest struct {
	Model     string   `json:"model"`
	Device    string   `json:"device,omitempty"`
	Words     []string `json:"words"`
	Boxes     [][4]int `json:"boxes"` // normalized 0-1000 space
	Image     string   `json:"image"` // Base64 encoded PNG
	MaxLength int      `json:"max_length"`
}

// inferResponse is the response from the /infer endpoint. WordIDs uses
// null for special tokens, mirroring the tokenizer's alignment output.
type inferResponse struct {
	Predictions []int     `json:"predictions"`
	Confidences []float64 `json:"confidences"`
	WordIDs     []*int    `json:"word_ids"`
	Error       string    `json:"error,omitempty"`
}

// NewRemoteAdapter creates a client for the given inference server.
func NewRemoteAdapter(baseURL, modelName, device string) *RemoteAdapter {
	return &RemoteAdapter{
		baseURL:   baseURL,
		modelName: modelName,
		device:    device,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // model load on first request can be slow
		},
		logger: logging.NewLogger("InferenceClient"),
	}
}

// ModelName returns the model identifier requests are routed to.
func (a *RemoteAdapter) ModelName() string {
	return a.modelName
}

// Infer classifies every word on the page.
func (a *RemoteAdapter) Infer(ctx context.Context, img image.Image, words []ocr.Result) (*InferenceResult, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	texts := make([]string, len(words))
	boxes := make([]document.BoundingBox, len(words))
	normalized := make([][4]int, len(words))
	for i, w := range words {
		texts[i] = w.Text
		boxes[i] = w.BBox
		normalized[i] = NormalizeBox(w.BBox, width, height)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.NewInferenceFailedError(a.modelName, err)
	}

	reqBody, err := json.Marshal(inferRequest{
		Model:     a.modelName,
		Device:    a.device,
		Words:     texts,
		Boxes:     normalized,
		Image:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		MaxLength: MaxSequenceLength,
	})
	if err != nil {
		return nil, errors.NewInferenceFailedError(a.modelName, err)
	}

	endpoint := fmt.Sprintf("%s/infer", a.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.NewInferenceFailedError(a.modelName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewInferenceFailedError(a.modelName, fmt.Errorf("request to inference server failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewInferenceFailedError(a.modelName, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewInferenceFailedError(a.modelName,
			fmt.Errorf("inference server returned status %d: %s", resp.StatusCode, string(body)))
	}

	var inferResp inferResponse
	if err := json.Unmarshal(body, &inferResp); err != nil {
		return nil, errors.NewInferenceFailedError(a.modelName, fmt.Errorf("failed to parse response: %w", err))
	}
	if inferResp.Error != "" {
		return nil, errors.NewInferenceFailedError(a.modelName, fmt.Errorf("inference server error: %s", inferResp.Error))
	}

	n := len(inferResp.Predictions)
	if len(inferResp.Confidences) != n || len(inferResp.WordIDs) != n {
		return nil, errors.NewInferenceFailedError(a.modelName,
			fmt.Errorf("misaligned response: %d predictions, %d confidences, %d word ids",
				n, len(inferResp.Confidences), len(inferResp.WordIDs)))
	}

	wordIDs := make([]int, n)
	for i, id := range inferResp.WordIDs {
		if id == nil {
			wordIDs[i] = NoWord
		} else {
			wordIDs[i] = *id
		}
	}

	a.logger.Debug("Inference complete", "words", len(words), "tokens", n)

	return &InferenceResult{
		Predictions:     inferResp.Predictions,
		Confidences:     inferResp.Confidences,
		WordIDs:         wordIDs,
		Words:           texts,
		Boxes:           boxes,
		NormalizedBoxes: normalized,
		ImageWidth:      width,
		ImageHeight:     height,
	}, nil
}

// Close drops idle connections to the inference server.
func (a *RemoteAdapter) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}
