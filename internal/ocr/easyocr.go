/**
 * EasyOCR Engine - Remote OCR sidecar client
 *
 * Talks to an EasyOCR service over HTTP. The sidecar owns the neural
 * reader and its device memory; this client only ships images and maps the
 * response into the engine contract.
 */

package ocr

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
	"sync"
	"time"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/logging"
)

// EasyOCREngine is an Engine backed by a remote EasyOCR service.
type EasyOCREngine struct {
	baseURL    string
	languages  []string
	httpClient *http.Client
	logger     *logging.Logger

	mu          sync.Mutex
	initialized bool
}

// easyOCRRequest is the request body for the /ocr endpoint.
type easyOCRRequest struct {
	Image     string   `json:"image"` // Base64 encoded PNG
	Languages []string `json:"languages"`
}

// easyOCRResponse is the response from the /ocr endpoint.
type easyOCRResponse struct {
	Results []easyOCRWord `json:"results"`
	Error   string        `json:"error,omitempty"`
}

// easyOCRWord is a single recognized word from the sidecar.
type easyOCRWord struct {
	Text       string  `json:"text"`
	BBox       [4]int  `json:"bbox"` // [x1, y1, x2, y2]
	Confidence float64 `json:"confidence"`
}

// NewEasyOCREngine creates the engine; Initialize verifies the sidecar is
// reachable.
func NewEasyOCREngine(opts Options) *EasyOCREngine {
	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"en"}
	}

	return &EasyOCREngine{
		baseURL:   opts.ServerURL,
		languages: langs,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // OCR on large pages can take a while
		},
		logger: logging.NewLogger("EasyOCR"),
	}
}

// Name returns the factory name of the engine.
func (e *EasyOCREngine) Name() string {
	return "easyocr"
}

// Initialize checks the sidecar health endpoint. Repeated calls are no-ops.
func (e *EasyOCREngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.baseURL == "" {
		return errors.NewConfigurationError("EASYOCR_URL is required for the easyocr engine")
	}

	endpoint := fmt.Sprintf("%s/health", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return errors.NewOCRFailedError(e.Name(), err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return errors.NewOCRFailedError(e.Name(), fmt.Errorf("EasyOCR service unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewOCRFailedError(e.Name(), fmt.Errorf("EasyOCR health check returned status %d", resp.StatusCode))
	}

	e.initialized = true
	e.logger.Info("EasyOCR engine initialized", "url", e.baseURL, "languages", e.languages)
	return nil
}

// ExtractText ships the image to the sidecar and maps its words into the
// engine contract.
func (e *EasyOCREngine) ExtractText(ctx context.Context, img image.Image) ([]Result, error) {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()

	if !initialized {
		return nil, errors.NewOCRFailedError(e.Name(), errors.NewConfigurationError("engine not initialized"))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.NewOCRFailedError(e.Name(), err)
	}

	reqBody, err := json.Marshal(easyOCRRequest{
		Image:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		Languages: e.languages,
	})
	if err != nil {
		return nil, errors.NewOCRFailedError(e.Name(), err)
	}

	endpoint := fmt.Sprintf("%s/ocr", e.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.NewOCRFailedError(e.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewOCRFailedError(e.Name(), fmt.Errorf("request to EasyOCR service failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewOCRFailedError(e.Name(), fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewOCRFailedError(e.Name(),
			fmt.Errorf("EasyOCR service returned status %d: %s", resp.StatusCode, string(body)))
	}

	var ocrResp easyOCRResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, errors.NewOCRFailedError(e.Name(), fmt.Errorf("failed to parse response: %w", err))
	}
	if ocrResp.Error != "" {
		return nil, errors.NewOCRFailedError(e.Name(), fmt.Errorf("EasyOCR service error: %s", ocrResp.Error))
	}

	results := make([]Result, 0, len(ocrResp.Results))
	for _, w := range ocrResp.Results {
		results = append(results, Result{
			Text: w.Text,
			BBox: document.BoundingBox{
				X1: w.BBox[0],
				Y1: w.BBox[1],
				X2: w.BBox[2],
				Y2: w.BBox[3],
			},
			Confidence: w.Confidence,
		})
	}

	return filterResults(results), nil
}

// Shutdown drops idle connections to the sidecar. Safe to call repeatedly.
func (e *EasyOCREngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.httpClient.CloseIdleConnections()
	e.initialized = false
	return nil
}
