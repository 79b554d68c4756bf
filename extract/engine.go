// Package extract is the content-extraction decision engine. It picks
// an extraction strategy from the resolved format, detects when a
// strategy produced unusable output, and falls back to OCR for
// image-only PDFs, returning a uniform Result whatever the input.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lexforge/scrivener/pdfops"
	"github.com/lexforge/scrivener/sniff"
	"github.com/lexforge/scrivener/tool"
)

// Config configures the engine. Zero values fall back to production
// defaults; tests override the probes and binaries.
type Config struct {
	// External engine binaries.
	PDFToText string `yaml:"pdftotext"`
	PDFToPPM  string `yaml:"pdftoppm"`
	Tesseract string `yaml:"tesseract"`
	Antiword  string `yaml:"antiword"`
	WPDToText string `yaml:"wpd2text"`

	// OCRDPI is the rasterization resolution for the OCR fallback.
	OCRDPI int `yaml:"ocr_dpi"`

	// MaxFileSize guards against pathological uploads (default 100 MB).
	MaxFileSize int64 `yaml:"max_file_size"`

	Logger *slog.Logger `yaml:"-"`

	// PageCount and HasImages probe PDF structure; defaults use pdfops.
	PageCount func(path string) (int, error)  `yaml:"-"`
	HasImages func(path string) (bool, error) `yaml:"-"`
}

func (c *Config) defaults() {
	if c.PDFToText == "" {
		c.PDFToText = "pdftotext"
	}
	if c.PDFToPPM == "" {
		c.PDFToPPM = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Antiword == "" {
		c.Antiword = "antiword"
	}
	if c.WPDToText == "" {
		c.WPDToText = "wpd2text"
	}
	if c.OCRDPI <= 0 {
		c.OCRDPI = 300
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.PageCount == nil {
		c.PageCount = pdfops.PageCount
	}
	if c.HasImages == nil {
		c.HasImages = pdfops.HasImageStreams
	}
}

// Engine orchestrates extraction. Safe for concurrent use: it holds no
// per-request state, only the fixed configuration.
type Engine struct {
	cfg     Config
	run     tool.Runner
	sniffer *sniff.Resolver
	logger  *slog.Logger
}

// New creates an Engine.
func New(run tool.Runner, sniffer *sniff.Resolver, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg, run: run, sniffer: sniffer, logger: cfg.Logger}
}

// Document extracts text from the file described by req.
//
// Extraction failures (unknown extension, empty output after the OCR
// fallback, nonzero converter exits) are data, reported inside the
// Result. The error return is reserved for environment failures: a
// converter binary that cannot start, unreadable input.
func (e *Engine) Document(ctx context.Context, req Request) (Result, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", req.Path, err)
	}
	if info.Size() > e.cfg.MaxFileSize {
		return Result{}, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), e.cfg.MaxFileSize)
	}

	ext := normalizeExt(req.Extension)
	if ext == "" {
		ext, err = e.sniffExtension(ctx, req.Path)
		if err != nil {
			return Result{}, err
		}
	}
	format := FormatFromExtension(ext)

	e.logger.Debug("extracting document", "path", req.Path, "format", string(format), "ocr_allowed", req.OCRAllowed)

	var res Result
	switch format {
	case FormatPDF:
		res, err = e.pdfDocument(ctx, req.Path, req.OCRAllowed)
	case FormatDoc:
		res, err = e.converterDocument(ctx, e.cfg.Antiword, req.Path)
	case FormatWordPerfect:
		res, err = e.converterDocument(ctx, e.cfg.WPDToText, req.Path)
	case FormatDocx:
		res, err = docxResult(req.Path)
	case FormatHTML:
		res, err = htmlResult(req.Path)
	case FormatText:
		res, err = textResult(req.Path)
	case FormatUnknown:
		res = Result{Err: diagUnknownExtension, ExitCode: 1}
	}
	if err != nil {
		return Result{}, err
	}

	res.Extension = ext
	if format == FormatPDF {
		if n, pcErr := e.cfg.PageCount(req.Path); pcErr == nil {
			res.PageCount = &n
		}
	}
	return res, nil
}

// pdfDocument runs the text layer first, then decides whether the
// output is usable. The escalation is strictly sequential: whether to
// OCR depends on what the primary extractor produced.
func (e *Engine) pdfDocument(ctx context.Context, path string, ocrAllowed bool) (Result, error) {
	text, diag, code, err := e.pdfText(ctx, path)
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(text) == "" {
		if !ocrAllowed {
			return Result{Err: diagNoContent, ExitCode: 1}, nil
		}
		ocrText, err := e.ocrPDF(ctx, path)
		if err != nil {
			return Result{}, err
		}
		if strings.TrimSpace(ocrText) == "" {
			return Result{Err: diagUnableToExtract, ExitCode: 1}, nil
		}
		return Result{Content: ocrText, ExtractedByOCR: true, Quality: e.pdfQuality(path, ocrText)}, nil
	}

	return Result{Content: text, Err: diag, ExitCode: code, Quality: e.pdfQuality(path, text)}, nil
}

// pdfQuality scores extracted text against the document's structure.
// Probe failures degrade to nil rather than failing the extraction.
func (e *Engine) pdfQuality(path, text string) *Quality {
	pages, err := e.cfg.PageCount(path)
	if err != nil {
		return nil
	}
	hasImages, err := e.cfg.HasImages(path)
	if err != nil {
		hasImages = false
	}
	return qualityOf(text, pages, hasImages)
}

// converterDocument wraps the single-step external converters (antiword
// for .doc, wpd2text for .wpd). Whatever they return is final: no
// fallback exists for these formats.
func (e *Engine) converterDocument(ctx context.Context, bin, path string) (Result, error) {
	stdout, stderr, code, err := e.run.Run(ctx, []string{bin, path}, nil)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Content:  string(stdout),
		Err:      strings.TrimSpace(string(stderr)),
		ExitCode: code,
	}, nil
}

// sniffExtension derives the routing extension from content bytes when
// the caller declared none. The resolver gets the whole file: its
// tail-based disambiguation needs the real end of the content, and the
// size was already capped against MaxFileSize.
func (e *Engine) sniffExtension(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	res := e.sniffer.Resolve(ctx, content)
	return normalizeExt(res.Extension), nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
