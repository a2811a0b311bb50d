/**
 * HTTP handlers for the DocExtract API
 */

package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/formlens/docextract/internal/device"
	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/export"
	"github.com/formlens/docextract/internal/queue"
	"github.com/formlens/docextract/internal/storage"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	dev := device.Resolve(s.config.Device)
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"version":      Version,
		"device":       dev.Name,
		"model_loaded": s.processor.Ready(),
	})
}

func (s *Server) handleReady(c *fiber.Ctx) error {
	if !s.processor.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "initializing"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) handleLive(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// handleProcess runs one uploaded image through the pipeline.
func (s *Server) handleProcess(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return s.badRequest(c, "missing file upload", err)
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return s.badRequest(c, fmt.Sprintf("invalid file type %q, expected image", ct), nil)
	}

	threshold, err := formThreshold(c)
	if err != nil {
		return s.badRequest(c, "invalid confidence_threshold", err)
	}

	data, err := readUpload(fh)
	if err != nil {
		return s.badRequest(c, "failed to read upload", err)
	}

	result, err := s.processImage(c, data, threshold)
	if err != nil {
		return s.serviceError(c, err)
	}
	return c.JSON(result)
}

// handleProcessPDF buffers the upload to disk and runs the per-page pipeline.
func (s *Server) handleProcessPDF(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return s.badRequest(c, "missing file upload", err)
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return s.badRequest(c, "expected a PDF file", nil)
	}

	threshold, err := formThreshold(c)
	if err != nil {
		return s.badRequest(c, "invalid confidence_threshold", err)
	}

	dpi := 0
	if raw := c.FormValue("dpi"); raw != "" {
		dpi, err = strconv.Atoi(raw)
		if err != nil || dpi < 1 {
			return s.badRequest(c, fmt.Sprintf("invalid dpi %q", raw), nil)
		}
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("docextract-%s.pdf", uuid.NewString()))
	if err := c.SaveFile(fh, path); err != nil {
		return s.badRequest(c, "failed to buffer upload", err)
	}
	defer os.Remove(path)

	ctx := c.UserContext()
	var result *document.ProcessingResult
	if threshold > 0 {
		result, err = s.processor.ProcessPDFWithThreshold(ctx, path, dpi, threshold)
	} else {
		result, err = s.processor.ProcessPDF(ctx, path, dpi)
	}
	if err != nil {
		return s.serviceError(c, err)
	}
	return c.JSON(result)
}

// handleBatch processes every uploaded file, isolating per-file failures.
func (s *Server) handleBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return s.badRequest(c, "expected multipart form", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return s.badRequest(c, "no files uploaded", nil)
	}

	threshold, err := formThreshold(c)
	if err != nil {
		return s.badRequest(c, "invalid confidence_threshold", err)
	}

	results := make([]*document.ProcessingResult, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		var result *document.ProcessingResult
		if err == nil {
			result, err = s.processImage(c, data, threshold)
		}
		if err != nil {
			results = append(results, &document.ProcessingResult{
				Status:   "error",
				Filename: fh.Filename,
				Error:    err.Error(),
			})
			continue
		}
		result.Filename = fh.Filename
		results = append(results, result)
	}

	return c.JSON(fiber.Map{"results": results})
}

// handleExport re-serializes a posted ProcessingResult into the requested
// format.
func (s *Server) handleExport(c *fiber.Ctx) error {
	result, err := export.Import(c.Body())
	if err != nil {
		return s.badRequest(c, "invalid result payload", err)
	}

	format := strings.ToLower(c.Params("format"))
	content, err := export.Export(result, format)
	if err != nil {
		return s.serviceError(c, err)
	}

	c.Type(format)
	return c.SendString(content)
}

// handleSubmitJob enqueues an async processing job.
func (s *Server) handleSubmitJob(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return s.badRequest(c, "missing file upload", err)
	}

	threshold, err := formThreshold(c)
	if err != nil {
		return s.badRequest(c, "invalid confidence_threshold", err)
	}

	kind := c.FormValue("kind")
	if kind == "" {
		kind = queue.KindImage
		if strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			kind = queue.KindPDF
		}
	}
	if kind != queue.KindImage && kind != queue.KindPDF {
		return s.badRequest(c, fmt.Sprintf("unknown job kind %q", kind), nil)
	}

	dpi := 0
	if raw := c.FormValue("dpi"); raw != "" {
		if dpi, err = strconv.Atoi(raw); err != nil || dpi < 1 {
			return s.badRequest(c, fmt.Sprintf("invalid dpi %q", raw), nil)
		}
	}

	data, err := readUpload(fh)
	if err != nil {
		return s.badRequest(c, "failed to read upload", err)
	}

	jobID, err := s.producer.Enqueue(c.UserContext(), &queue.ProcessTaskPayload{
		Filename:            fh.Filename,
		Kind:                kind,
		Source:              queue.TaskSource{Data: data},
		DPI:                 dpi,
		ConfidenceThreshold: threshold,
	})
	if err != nil {
		return s.serviceError(c, err)
	}

	if s.store != nil {
		if err := s.store.UpdateJobStatus(c.UserContext(), &storage.JobUpdate{
			JobID:    jobID,
			Status:   "queued",
			Filename: fh.Filename,
			Kind:     kind,
		}); err != nil {
			s.logger.Warn("Failed to record queued job", "job", jobID, "error", err)
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID, "status": "queued"})
}

// handleGetJob returns the persisted state of an async job.
func (s *Server) handleGetJob(c *fiber.Ctx) error {
	record, err := s.store.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return s.serviceError(c, errors.NewStorageFailedError("get job", err))
	}
	return c.JSON(record)
}

func (s *Server) processImage(c *fiber.Ctx, data []byte, threshold float64) (*document.ProcessingResult, error) {
	ctx := c.UserContext()
	if threshold > 0 {
		return s.processor.ProcessImageWithThreshold(ctx, data, threshold)
	}
	return s.processor.ProcessImage(ctx, data)
}

// serviceError maps pipeline error codes onto HTTP statuses.
func (s *Server) serviceError(c *fiber.Ctx, err error) error {
	code := errors.CodeOf(err)
	status := fiber.StatusInternalServerError
	switch code {
	case errors.ErrorInvalidImage, errors.ErrorUnsupportedFormat, errors.ErrorExportFailed:
		status = fiber.StatusBadRequest
	case errors.ErrorProcessingTimeout:
		status = fiber.StatusGatewayTimeout
	}

	s.logger.Error("Request failed", "path", c.Path(), "code", string(code), "error", err)
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": string(code)})
}

func (s *Server) badRequest(c *fiber.Ctx, message string, err error) error {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	s.logger.Warn("Rejected request", "path", c.Path(), "reason", message)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// formThreshold parses the optional confidence_threshold form field. Zero
// (or absence) keeps the configured default.
func formThreshold(c *fiber.Ctx) (float64, error) {
	raw := c.FormValue("confidence_threshold")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid confidence_threshold %q", raw)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence_threshold must be within [0, 1], got %v", v)
	}
	return v, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
