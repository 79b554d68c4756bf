// Package service wires the conversion components behind the HTTP and
// MCP surfaces: uploads land in temp files, get routed to the right
// engine, and the outcome is reported in the transport's vocabulary.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexforge/scrivener/audio"
	"github.com/lexforge/scrivener/extract"
	"github.com/lexforge/scrivener/idgen"
	"github.com/lexforge/scrivener/observability"
	"github.com/lexforge/scrivener/pdfops"
	"github.com/lexforge/scrivener/sniff"
	"github.com/lexforge/scrivener/tool"
)

// Service is the conversion microservice. It holds no per-request
// state; every operation starts from an uploaded file and ends with a
// response body.
type Service struct {
	engine     *extract.Engine
	sniffer    *sniff.Resolver
	raster     *pdfops.Rasterizer
	textLayer  *pdfops.TextLayerer
	transcoder *audio.Transcoder

	events    *observability.EventLogger
	metrics   *observability.MetricsManager
	heartbeat HeartbeatProbe

	httpClient *http.Client
	logger     *slog.Logger
	newID      idgen.Generator
	tempDir    string
	maxUpload  int64
}

// HeartbeatProbe looks up the latest recorded heartbeat so the health
// endpoint can report a stalled worker.
type HeartbeatProbe func(ctx context.Context) (*observability.HeartbeatStatus, error)

// Option configures a Service.
type Option func(*Service)

// WithHeartbeatProbe wires the health endpoint to the heartbeat store.
func WithHeartbeatProbe(probe HeartbeatProbe) Option {
	return func(s *Service) { s.heartbeat = probe }
}

// WithEventLogger records conversion events to the observability store.
func WithEventLogger(el *observability.EventLogger) Option {
	return func(s *Service) { s.events = el }
}

// WithMetrics records operation timings to the observability store.
func WithMetrics(mm *observability.MetricsManager) Option {
	return func(s *Service) { s.metrics = mm }
}

// WithHTTPClient overrides the client used to fetch image URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithLogger overrides the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithIDGenerator overrides the temp-file name generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newID = gen }
}

// New assembles a Service from the given configuration and Runner.
func New(cfg Config, run tool.Runner, opts ...Option) *Service {
	sniffer := sniff.New(sniff.WithFileCommand(run, cfg.Binaries.File))
	engine := extract.New(run, sniffer, extract.Config{
		PDFToText:   cfg.Binaries.PDFToText,
		PDFToPPM:    cfg.Binaries.PDFToPPM,
		Tesseract:   cfg.Binaries.Tesseract,
		Antiword:    cfg.Binaries.Antiword,
		WPDToText:   cfg.Binaries.WPDToText,
		OCRDPI:      cfg.OCRDPI,
		MaxFileSize: cfg.MaxUploadBytes,
	})

	s := &Service{
		engine:  engine,
		sniffer: sniffer,
		raster: pdfops.NewRasterizer(run,
			pdfops.WithRasterBinary(cfg.Binaries.PDFToPPM),
			pdfops.WithRasterDPI(cfg.ThumbnailDPI)),
		textLayer: pdfops.NewTextLayerer(run,
			pdfops.WithTextLayerBinaries(cfg.Binaries.PDFToPPM, cfg.Binaries.Tesseract),
			pdfops.WithTextLayerDPI(cfg.OCRDPI)),
		transcoder: audio.NewTranscoder(run,
			audio.WithBinaries(cfg.Binaries.FFmpeg, cfg.Binaries.FFprobe)),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     slog.Default(),
		newID:      idgen.NanoID(16),
		tempDir:    cfg.TempDir,
		maxUpload:  cfg.MaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// saveUpload copies the multipart file to a private temp file whose
// extension mirrors the uploaded filename, so extension-routed engines
// see what the caller declared. The returned cleanup is safe to defer
// unconditionally.
func (s *Service) saveUpload(file multipart.File, header *multipart.FileHeader) (path, ext string, cleanup func(), err error) {
	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))

	name := s.newID()
	if ext != "" {
		name += "." + ext
	}
	path = filepath.Join(s.tempDir, "scrivener-"+name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", "", nil, fmt.Errorf("create upload temp: %w", err)
	}
	_, copyErr := io.Copy(dst, file)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(path)
		if copyErr == nil {
			copyErr = closeErr
		}
		return "", "", nil, fmt.Errorf("write upload temp: %w", copyErr)
	}
	return path, ext, func() { os.Remove(path) }, nil
}

// tempPath reserves a fresh temp file name with the given suffix.
func (s *Service) tempPath(suffix string) string {
	return filepath.Join(s.tempDir, "scrivener-"+s.newID()+suffix)
}

// logEvent records a conversion event when an event logger is wired.
func (s *Service) logEvent(r *http.Request, ev observability.ConversionEvent) {
	if s.events == nil {
		return
	}
	s.events.LogEvent(r.Context(), ev)
}

// recordDuration records a timing metric when metrics are wired.
func (s *Service) recordDuration(name string, started time.Time, labels map[string]string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Record(&observability.Metric{
		Name:      name,
		Timestamp: time.Now(),
		Value:     float64(time.Since(started).Milliseconds()),
		Labels:    labels,
		Unit:      "milliseconds",
	})
}
