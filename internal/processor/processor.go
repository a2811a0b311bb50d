/**
 * DocumentProcessor - Core extraction pipeline
 *
 * Orchestrates preprocess -> OCR -> inference -> postprocess for images,
 * PDFs (page by page) and batches. The processor lazily initializes on
 * first use, serializes pipeline runs (the OCR client is not reentrant),
 * and reports every stage failure as a pipeline error wrapping the cause.
 */

package processor

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/formlens/docextract/internal/config"
	"github.com/formlens/docextract/internal/device"
	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/imaging"
	"github.com/formlens/docextract/internal/logging"
	"github.com/formlens/docextract/internal/model"
	"github.com/formlens/docextract/internal/ocr"
	"github.com/formlens/docextract/internal/pdf"
)

// DocumentProcessorInterface defines the operations transports depend on
type DocumentProcessorInterface interface {
	Initialize(ctx context.Context) error
	ProcessImage(ctx context.Context, source any) (*document.ProcessingResult, error)
	ProcessImageWithThreshold(ctx context.Context, source any, threshold float64) (*document.ProcessingResult, error)
	ProcessPDF(ctx context.Context, path string, dpi int) (*document.ProcessingResult, error)
	ProcessPDFWithThreshold(ctx context.Context, path string, dpi int, threshold float64) (*document.ProcessingResult, error)
	ProcessBatch(ctx context.Context, sources []any) []*document.ProcessingResult
	Ready() bool
	Shutdown() error
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateShutdown
)

// EngineFactory builds an OCR engine by name.
type EngineFactory func(name string, opts ocr.Options) (ocr.Engine, error)

// AdapterFactory builds a model adapter for a model/device pair.
type AdapterFactory func(modelName, deviceName string) (model.Adapter, error)

// DocumentProcessor is the pipeline orchestrator.
type DocumentProcessor struct {
	config *config.Config
	logger *logging.Logger

	mu         sync.Mutex
	state      state
	device     device.Device
	engine     ocr.Engine
	adapter    model.Adapter
	cache      *model.Cache
	rasterizer pdf.Rasterizer

	newEngine  EngineFactory
	newAdapter AdapterFactory
}

// Option overrides a collaborator, mainly for tests.
type Option func(*DocumentProcessor)

// WithEngineFactory replaces the OCR engine factory.
func WithEngineFactory(f EngineFactory) Option {
	return func(p *DocumentProcessor) { p.newEngine = f }
}

// WithAdapterFactory replaces the model adapter factory.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(p *DocumentProcessor) { p.newAdapter = f }
}

// WithRasterizer replaces the PDF rasterizer.
func WithRasterizer(r pdf.Rasterizer) Option {
	return func(p *DocumentProcessor) { p.rasterizer = r }
}

// WithModelCache shares an externally owned adapter cache.
func WithModelCache(c *model.Cache) Option {
	return func(p *DocumentProcessor) { p.cache = c }
}

// New creates a processor in the uninitialized state. Initialize (or the
// first Process call) brings up the collaborators.
func New(cfg *config.Config, opts ...Option) *DocumentProcessor {
	p := &DocumentProcessor{
		config:     cfg,
		logger:     logging.NewLogger("Processor"),
		cache:      model.NewCache(),
		rasterizer: pdf.NewFitzRasterizer(),
		newEngine:  ocr.New,
	}
	p.newAdapter = func(modelName, deviceName string) (model.Adapter, error) {
		return model.NewRemoteAdapter(cfg.InferenceURL, modelName, deviceName), nil
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize resolves the device, brings up the OCR engine and loads the
// model adapter. Calling it on a ready processor is a no-op; calling it
// after Shutdown revives the processor.
func (p *DocumentProcessor) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initializeLocked(ctx)
}

func (p *DocumentProcessor) initializeLocked(ctx context.Context) error {
	if p.state == stateReady {
		return nil
	}

	p.device = device.Resolve(p.config.Device)
	p.logger.Info("Using device", "device", p.device.Name)

	engine, err := p.newEngine(p.config.OCREngine, ocr.Options{
		Languages: p.config.OCRLanguages,
		ServerURL: p.config.EasyOCRURL,
	})
	if err != nil {
		return err
	}
	if err := engine.Initialize(ctx); err != nil {
		return err
	}

	adapter, err := p.cache.GetOrLoad(p.config.ModelName, p.device.Name, func() (model.Adapter, error) {
		return p.newAdapter(p.config.ModelName, p.device.Name)
	})
	if err != nil {
		engine.Shutdown()
		return err
	}

	p.engine = engine
	p.adapter = adapter
	p.state = stateReady
	p.logger.Info("Document processor initialized", "ocr_engine", engine.Name(), "model", p.config.ModelName)
	return nil
}

// Ready reports whether the processor has been initialized and not shut
// down.
func (p *DocumentProcessor) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateReady
}

// ProcessImage runs the full pipeline over one image source (file path,
// raw bytes, stream or decoded image) with the configured confidence
// threshold.
func (p *DocumentProcessor) ProcessImage(ctx context.Context, source any) (*document.ProcessingResult, error) {
	return p.ProcessImageWithThreshold(ctx, source, p.config.ConfidenceThreshold)
}

// ProcessImageWithThreshold is ProcessImage with a per-call confidence
// threshold, for callers that let clients override the configured value.
func (p *DocumentProcessor) ProcessImageWithThreshold(ctx context.Context, source any, threshold float64) (*document.ProcessingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processImageLocked(ctx, source, threshold)
}

func (p *DocumentProcessor) processImageLocked(ctx context.Context, source any, threshold float64) (*document.ProcessingResult, error) {
	start := time.Now()

	// Implicit initialization failures surface as pipeline errors, same
	// as any other stage.
	if err := p.initializeLocked(ctx); err != nil {
		return nil, errors.NewPipelineError("initialization", err)
	}

	p.logger.Info("Processing image", "source", describeSource(source))

	// Step 1: Preprocess
	prepared, err := imaging.Preprocess(source, p.config.MaxImageSize)
	if err != nil {
		return nil, errors.NewPipelineError("preprocess", err)
	}
	p.logger.Debug("Image preprocessed", "width", prepared.Width, "height", prepared.Height)

	// Step 2: OCR
	words, err := p.engine.ExtractText(ctx, prepared.Image)
	if err != nil {
		return nil, errors.NewPipelineError("ocr", err)
	}
	p.logger.Debug("OCR extracted text regions", "count", len(words))

	// Blank page: succeed without touching the model.
	if len(words) == 0 {
		p.logger.Info("No text detected, skipping inference")
		return p.buildResult(start, []document.PageResult{{Page: 1, Entities: []document.Entity{}}}, p.imageMetadata(prepared)), nil
	}

	// Step 3: Inference
	inf, err := p.adapter.Infer(ctx, prepared.Image, words)
	if err != nil {
		return nil, errors.NewPipelineError("inference", err)
	}

	// Step 4: Decode and aggregate
	entities := DecodeEntities(inf, threshold)
	entities = AggregateEntities(entities)

	result := p.buildResult(start, []document.PageResult{{Page: 1, Entities: entities}}, p.imageMetadata(prepared))
	p.logger.Info("Processed image", "ms", result.ProcessingTimeMS, "entities", len(entities))
	return result, nil
}

// ProcessPDF rasterizes the document and runs the image pipeline per page.
// Page numbers in the combined result are 1-based document order.
func (p *DocumentProcessor) ProcessPDF(ctx context.Context, path string, dpi int) (*document.ProcessingResult, error) {
	return p.ProcessPDFWithThreshold(ctx, path, dpi, p.config.ConfidenceThreshold)
}

// ProcessPDFWithThreshold is ProcessPDF with a per-call confidence threshold.
func (p *DocumentProcessor) ProcessPDFWithThreshold(ctx context.Context, path string, dpi int, threshold float64) (*document.ProcessingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()

	if dpi < 1 {
		dpi = p.config.PDFDPI
	}

	pages, err := p.rasterizer.LoadPages(path, dpi)
	if err != nil {
		return nil, errors.NewPipelineError("pdf rasterization", err)
	}
	if len(pages) == 0 {
		return nil, errors.NewPipelineError("pdf rasterization", fmt.Errorf("PDF contains no pages: %s", path))
	}
	p.logger.Info("Processing PDF", "path", path, "pages", len(pages), "dpi", dpi)

	combined := make([]document.PageResult, 0, len(pages))
	for i, pageImage := range pages {
		pageResult, err := p.processImageLocked(ctx, pageImage, threshold)
		if err != nil {
			return nil, errors.NewPipelineError(fmt.Sprintf("pdf page %d", i+1), err)
		}
		if len(pageResult.Results) > 0 {
			page := pageResult.Results[0]
			page.Page = i + 1
			combined = append(combined, page)
		}
	}

	meta := &document.Metadata{
		ModelVersion: p.config.ModelVersion,
		OCREngine:    p.engine.Name(),
		TotalPages:   len(pages),
	}
	result := p.buildResult(start, combined, meta)
	p.logger.Info("Processed PDF", "pages", len(pages), "ms", result.ProcessingTimeMS, "entities", result.EntityCount())
	return result, nil
}

// ProcessBatch processes each source independently. A failing item
// produces an error result in its slot; the rest of the batch continues.
func (p *DocumentProcessor) ProcessBatch(ctx context.Context, sources []any) []*document.ProcessingResult {
	results := make([]*document.ProcessingResult, 0, len(sources))
	failed := 0

	for i, source := range sources {
		result, err := p.ProcessImage(ctx, source)
		if err != nil {
			p.logger.Warn("Batch item failed", "index", i, "error", err)
			results = append(results, &document.ProcessingResult{
				Status: "error",
				Error:  err.Error(),
			})
			failed++
			continue
		}
		results = append(results, result)
	}

	p.logger.Info("Batch complete", "total", len(sources), "succeeded", len(sources)-failed, "failed", failed)
	return results
}

// Shutdown releases the OCR engine and every cached model adapter. Safe to
// call repeatedly; a later Initialize revives the processor.
func (p *DocumentProcessor) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateShutdown {
		return nil
	}

	if p.engine != nil {
		if err := p.engine.Shutdown(); err != nil {
			p.logger.Warn("OCR engine shutdown failed", "error", err)
		}
		p.engine = nil
	}

	p.cache.Clear()
	p.adapter = nil

	if err := p.rasterizer.Close(); err != nil {
		p.logger.Warn("Rasterizer close failed", "error", err)
	}

	p.state = stateShutdown
	p.logger.Info("Document processor shutdown complete")
	return nil
}

// buildResult assembles a success result, rounding times and confidences
// for presentation.
func (p *DocumentProcessor) buildResult(start time.Time, pages []document.PageResult, meta *document.Metadata) *document.ProcessingResult {
	for pi := range pages {
		if pages[pi].Entities == nil {
			pages[pi].Entities = []document.Entity{}
		}
		for ei := range pages[pi].Entities {
			pages[pi].Entities[ei].Confidence = document.RoundConfidence(pages[pi].Entities[ei].Confidence)
		}
	}

	elapsed := float64(time.Since(start).Nanoseconds()) / 1e6
	return &document.ProcessingResult{
		Status:           "success",
		ProcessingTimeMS: document.RoundMillis(elapsed),
		Results:          pages,
		Metadata:         meta,
	}
}

func (p *DocumentProcessor) imageMetadata(prepared *imaging.Prepared) *document.Metadata {
	return &document.Metadata{
		ModelVersion: p.config.ModelVersion,
		OCREngine:    p.engine.Name(),
		ImageSize:    prepared.Size(),
	}
}

// describeSource renders a source for log lines without dumping payloads.
func describeSource(source any) string {
	switch src := source.(type) {
	case string:
		return src
	case []byte:
		return fmt.Sprintf("%d bytes", len(src))
	case io.Reader:
		return "stream"
	case image.Image:
		return "decoded image"
	default:
		return fmt.Sprintf("%T", source)
	}
}
