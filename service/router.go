package service

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexforge/scrivener/audio"
	"github.com/lexforge/scrivener/extract"
	"github.com/lexforge/scrivener/observability"
	"github.com/lexforge/scrivener/pdfops"
)

// RegisterHTTP mounts every operation on the router. All conversion
// endpoints take a multipart upload in the "file" field; validation
// failures return 406 with a plain-text reason, extraction failures
// travel inside a 200 payload, and engine crashes are 500s.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/", s.handleHealth)

	r.Post("/extract/doc/text/", s.handleExtractDoc)
	r.Post("/extract/pdf/text/", s.handleExtractPDFText)

	r.Post("/convert/pdf/thumbnail/", s.handleThumbnail)
	r.Post("/convert/pdf/thumbnails/", s.handleThumbnails)
	r.Post("/convert/image/pdf/", s.handleImageToPDF)
	r.Post("/convert/images/pdf/", s.handleImagesToPDF)
	r.Post("/convert/audio/mp3/", s.handleAudioMP3)

	r.Post("/utils/page-count/pdf/", s.handlePageCount)
	r.Post("/utils/mime-type/", s.handleMimeType)
	r.Post("/utils/file/extension/", s.handleFileExtension)
	r.Post("/utils/file/mime/", s.handleFileMime)
	r.Post("/utils/audio/duration/", s.handleAudioDuration)
	r.Post("/utils/add/text/pdf/", s.handleAddTextLayer)
}

// handleHealth is the liveness probe. When a heartbeat probe is wired
// it also checks that the background heartbeat is still beating.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.heartbeat != nil {
		hs, err := s.heartbeat(r.Context())
		if err == nil && hs != nil && !hs.Alive {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, "Heartbeat stale.")
			return
		}
	}
	io.WriteString(w, "Heartbeat detected.")
}

// handleExtractDoc runs the full extraction pipeline on any supported
// document format. The ocr_available flag gates the OCR fallback for
// image-only PDFs.
func (s *Service) handleExtractDoc(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, ext, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	req := extract.Request{
		Path:       path,
		Extension:  ext,
		OCRAllowed: truthy(queryOrForm(r, "ocr_available")),
	}
	res, err := s.engine.Document(r.Context(), req)
	if err != nil {
		s.logger.Error("extraction crashed", "extension", ext, "error", err)
		writeError(w, 500, err)
		return
	}

	s.recordDuration(observability.MetricExtractionDurationMs, started,
		map[string]string{"extension": res.Extension})
	s.logEvent(r, observability.ConversionEvent{
		Operation: "extract",
		Extension: res.Extension,
		Duration:  time.Since(started),
		OCRUsed:   res.ExtractedByOCR,
		Success:   res.Err == "",
		Detail:    res.Err,
	})
	if res.ExtractedByOCR && s.metrics != nil {
		s.metrics.RecordSimple(observability.MetricOCRFallbackCount, 1, "count")
	}

	writeJSON(w, 200, res)
}

// handleExtractPDFText is the PDF-only fast path: raw text body, with
// the OCR fallback still gated on ocr_available for image-only PDFs.
func (s *Service) handleExtractPDFText(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	res, err := s.engine.Document(r.Context(), extract.Request{
		Path:       path,
		Extension:  "pdf",
		OCRAllowed: truthy(queryOrForm(r, "ocr_available")),
	})
	if err != nil {
		writeError(w, 500, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(200)
	io.WriteString(w, res.Content)
}

func (s *Service) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	maxDim, err := queryIntDefault(r, "max_dimension", 350)
	if err != nil {
		writeValidation(w, "max_dimension must be an integer")
		return
	}

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	thumb, err := s.raster.Thumbnail(r.Context(), path, 1, maxDim)
	if err != nil {
		writeError(w, 500, err)
		return
	}

	s.recordDuration(observability.MetricThumbnailDurationMs, started, nil)
	s.logEvent(r, observability.ConversionEvent{
		Operation: "thumbnail", Extension: "pdf",
		Duration: time.Since(started), Success: true,
	})

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(200)
	w.Write(thumb)
}

func (s *Service) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	maxDim, err := queryIntDefault(r, "max_dimension", 350)
	if err != nil {
		writeValidation(w, "max_dimension must be an integer")
		return
	}
	var pages []int
	if raw := queryOrForm(r, "pages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &pages); err != nil {
			writeValidation(w, "pages must be a JSON array of page numbers")
			return
		}
	}
	if len(pages) == 0 {
		writeValidation(w, "pages is required")
		return
	}

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	archive, err := s.raster.ThumbnailZip(r.Context(), path, pages, maxDim)
	if err != nil {
		writeError(w, 500, err)
		return
	}

	s.recordDuration(observability.MetricThumbnailDurationMs, started, nil)
	w.Header().Set("Content-Type", "application/zip")
	w.WriteHeader(200)
	w.Write(archive)
}

// handlePageCount reports the structural page count for PDFs. Page
// count is undefined for every other format, so those answer null
// rather than zero or an error.
func (s *Service) handlePageCount(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, ext, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	if ext == "" {
		content, err := os.ReadFile(path)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		ext = strings.TrimPrefix(s.sniffer.Resolve(r.Context(), content).Extension, ".")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if ext != "pdf" {
		w.WriteHeader(200)
		io.WriteString(w, "null")
		return
	}

	n, err := pdfops.PageCount(path)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	w.WriteHeader(200)
	io.WriteString(w, strconv.Itoa(n))
}

// handleMimeType returns either the raw MIME type or the sniffer's
// human-readable description, matching what callers historically store.
func (s *Service) handleMimeType(w http.ResponseWriter, r *http.Request) {
	wantMIME := truthy(queryOrForm(r, "mime"))

	content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var label string
	if wantMIME {
		label = s.sniffer.MIME(content)
	} else {
		desc, err := s.sniffer.Description(r.Context(), content)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		label = desc
	}
	writeJSON(w, 200, map[string]string{"mimetype": label})
}

func (s *Service) handleFileExtension(w http.ResponseWriter, r *http.Request) {
	content, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	res := s.sniffer.Resolve(r.Context(), content)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(200)
	io.WriteString(w, res.Extension)
}

func (s *Service) handleFileMime(w http.ResponseWriter, r *http.Request) {
	content, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	res := s.sniffer.Resolve(r.Context(), content)
	writeJSON(w, 200, map[string]string{
		"mime":      res.MIME,
		"extension": res.Extension,
	})
}

// handleImagesToPDF downloads the listed images and assembles them into
// one PDF, one page per image, preserving list order. The result is
// scrubbed of authoring metadata before it leaves.
func (s *Service) handleImagesToPDF(w http.ResponseWriter, r *http.Request) {
	var urls []string
	raw := queryOrForm(r, "sorted_urls")
	if raw == "" {
		writeValidation(w, "sorted_urls is required")
		return
	}
	if err := json.Unmarshal([]byte(raw), &urls); err != nil || len(urls) == 0 {
		writeValidation(w, "sorted_urls must be a non-empty JSON array of URLs")
		return
	}

	images := make([]string, 0, len(urls))
	defer func() {
		for _, img := range images {
			os.Remove(img)
		}
	}()
	for _, u := range urls {
		img, err := s.downloadTo(r, u)
		if err != nil {
			writeError(w, 500, fmt.Errorf("download %s: %w", u, err))
			return
		}
		images = append(images, img)
	}

	assembled := s.tempPath(".pdf")
	defer os.Remove(assembled)
	if err := pdfops.FromImages(images, assembled); err != nil {
		writeError(w, 500, err)
		return
	}

	clean := s.tempPath(".pdf")
	defer os.Remove(clean)
	if err := pdfops.StripMetadata(assembled, clean); err != nil {
		writeError(w, 500, err)
		return
	}

	s.logEvent(r, observability.ConversionEvent{Operation: "images_to_pdf", Success: true})
	s.serveFile(w, clean, "application/pdf")
}

// handleImageToPDF converts a single uploaded image, usually a TIFF
// scan, into a one-page PDF with authoring metadata stripped.
func (s *Service) handleImageToPDF(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	assembled := s.tempPath(".pdf")
	defer os.Remove(assembled)
	if err := pdfops.FromImages([]string{path}, assembled); err != nil {
		writeError(w, 500, err)
		return
	}

	clean := s.tempPath(".pdf")
	defer os.Remove(clean)
	if err := pdfops.StripMetadata(assembled, clean); err != nil {
		writeError(w, 500, err)
		return
	}

	s.logEvent(r, observability.ConversionEvent{Operation: "image_to_pdf", Success: true})
	s.serveFile(w, clean, "application/pdf")
}

// handleAudioMP3 transcodes the upload to MP3 and labels it with the
// case metadata passed alongside the file.
func (s *Service) handleAudioMP3(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	year, err := queryIntDefault(r, "date_argued_year", 0)
	if err != nil {
		writeValidation(w, "date_argued_year must be an integer")
		return
	}
	meta := audio.Metadata{
		CaseName:       queryOrForm(r, "case_name"),
		CourtFullName:  queryOrForm(r, "court_full_name"),
		CourtShortName: queryOrForm(r, "court_short_name"),
		DocketNumber:   queryOrForm(r, "docket_number"),
		DownloadURL:    queryOrForm(r, "download_url"),
		DateArguedYear: year,
	}

	out := s.tempPath(".mp3")
	defer os.Remove(out)
	if err := s.transcoder.ToMP3(r.Context(), path, out); err != nil {
		writeError(w, 500, err)
		return
	}
	if err := audio.Tag(out, meta); err != nil {
		writeError(w, 500, err)
		return
	}

	s.recordDuration(observability.MetricTranscodeDurationMs, started, nil)
	s.logEvent(r, observability.ConversionEvent{
		Operation: "audio_mp3",
		Duration:  time.Since(started),
		Success:   true,
	})
	s.serveFile(w, out, "audio/mpeg")
}

func (s *Service) handleAudioDuration(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	seconds, err := s.transcoder.Duration(r.Context(), path)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(200)
	fmt.Fprintf(w, "%g", seconds)
}

func (s *Service) handleAddTextLayer(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, _, cleanup, err := s.saveUpload(file, header)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer cleanup()

	out := s.tempPath(".pdf")
	defer os.Remove(out)
	if err := s.textLayer.Embed(r.Context(), path, out); err != nil {
		writeError(w, 500, err)
		return
	}

	s.logEvent(r, observability.ConversionEvent{Operation: "add_text_layer", Extension: "pdf", Success: true})
	s.serveFile(w, out, "application/pdf")
}

// --- request helpers ---

// formFile pulls the "file" multipart field, enforcing the upload size
// limit. On failure it has already written the 406.
func (s *Service) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, "a file upload in the 'file' field is required")
		return nil, nil, false
	}
	return file, header, true
}

// readUpload slurps the "file" field into memory for the sniffing
// endpoints, which never need the bytes on disk.
func (s *Service) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	file, _, ok := s.formFile(w, r)
	if !ok {
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, 500, err)
		return nil, false
	}
	return content, true
}

// downloadTo fetches one image URL into a temp file, keeping the URL's
// extension so the importer recognizes the format.
func (s *Service) downloadTo(r *http.Request, url string) (string, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	dst := s.tempPath(strings.ToLower(path.Ext(url)))
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(f, io.LimitReader(resp.Body, s.maxUpload))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(dst)
		if copyErr == nil {
			copyErr = closeErr
		}
		return "", copyErr
	}
	return dst, nil
}

func (s *Service) serveFile(w http.ResponseWriter, path, contentType string) {
	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(200)
	w.Write(data)
}

func queryOrForm(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return r.FormValue(key)
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	v := queryOrForm(r, key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeValidation reports a request the service refuses to process.
func writeValidation(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotAcceptable)
	io.WriteString(w, "Failed validation: "+reason)
}
