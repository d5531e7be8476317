// Package docpipe reduces raw document bytes to plain natural-language text.
//
// Supported formats:
//   - pdf: page text via ledongthuc/pdf, pdfcpu content streams as fallback
//   - docx: raw text of word/document.xml (archive/zip + encoding/xml)
//   - html: boilerplate removal, tag stripping, entity decoding
//   - text: pass-through (plain text and Markdown)
//
// The format is decided once by SniffUpload or SniffURL and selects exactly one
// extractor. Extracted text is checked with CheckProse / CheckLength by the
// caller, which knows where the bytes came from.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	format, err := docpipe.SniffUpload("policy.docx", "")
//	doc, err := pipe.Extract(ctx, data, format)
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/policyvet/apperr"
)

// Extractor produces candidate text from raw bytes of one format.
type Extractor func(ctx context.Context, data []byte) (*Document, error)

// Pipeline is the document extraction engine.
type Pipeline struct {
	cfg        Config
	logger     *slog.Logger
	extractors map[Format]Extractor
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithExtractor replaces the extractor used for format.
func WithExtractor(format Format, fn Extractor) Option {
	return func(p *Pipeline) { p.extractors[format] = fn }
}

// New creates a Pipeline with the given configuration.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		extractors: map[Format]Extractor{
			FormatPDF:  extractPDF,
			FormatDocx: extractDocx,
			FormatHTML: newHTMLExtractor(cfg.Markdown).Extract,
			FormatText: extractText,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Extract runs the extractor registered for format over data.
// Parser failures are reported as apperr.ErrParse naming the format.
func (p *Pipeline) Extract(ctx context.Context, data []byte, format Format) (*Document, error) {
	fn, ok := p.extractors[format]
	if !ok {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "no extractor for format %q", format)
	}

	start := time.Now()
	doc, err := fn(ctx, data)
	if err != nil {
		p.logger.Debug("docpipe: extraction failed", "format", format, "bytes", len(data), "error", err)
		return nil, err
	}
	if doc == nil {
		doc = &Document{}
	}
	doc.Format = format

	attrs := []any{"format", format, "bytes", len(data), "chars", len(doc.Text),
		"duration_ms", time.Since(start).Milliseconds()}
	if doc.Quality != nil {
		attrs = append(attrs, "pages", doc.Quality.PageCount, "needs_ocr", doc.Quality.NeedsOCR())
	}
	p.logger.Debug("docpipe: extracted", attrs...)
	return doc, nil
}

// parseError reports a decoder failure for format with the decoder's message.
func parseError(format Format, cause error) error {
	return apperr.Wrap(apperr.ErrParse, cause, fmt.Sprintf("%s parse failed: %v", format.Label(), cause))
}
