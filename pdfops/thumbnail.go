package pdfops

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/lexforge/scrivener/tool"
)

// Rasterizer renders PDF pages to PNG thumbnails through pdftoppm.
type Rasterizer struct {
	run tool.Runner
	bin string
	dpi int

	// pageCount is swappable so tests don't need real PDFs.
	pageCount func(path string) (int, error)
}

// RasterizerOption configures a Rasterizer.
type RasterizerOption func(*Rasterizer)

// WithRasterBinary overrides the pdftoppm binary name.
func WithRasterBinary(bin string) RasterizerOption {
	return func(r *Rasterizer) {
		if bin != "" {
			r.bin = bin
		}
	}
}

// WithRasterDPI overrides the render resolution.
func WithRasterDPI(dpi int) RasterizerOption {
	return func(r *Rasterizer) {
		if dpi > 0 {
			r.dpi = dpi
		}
	}
}

// WithPageCounter overrides the page-range probe.
func WithPageCounter(fn func(string) (int, error)) RasterizerOption {
	return func(r *Rasterizer) { r.pageCount = fn }
}

// NewRasterizer creates a Rasterizer on the given Runner.
func NewRasterizer(run tool.Runner, opts ...RasterizerOption) *Rasterizer {
	r := &Rasterizer{run: run, bin: "pdftoppm", dpi: 72, pageCount: PageCount}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Thumbnail renders one page as a PNG whose longest edge is at most
// maxDim pixels. Pages are 1-based; out-of-range pages are rejected
// before any engine runs.
func (r *Rasterizer) Thumbnail(ctx context.Context, pdfPath string, page, maxDim int) ([]byte, error) {
	total, err := r.pageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > total {
		return nil, fmt.Errorf("page %d out of range (document has %d)", page, total)
	}

	raw, err := r.renderPage(ctx, pdfPath, page)
	if err != nil {
		return nil, err
	}
	return resizePNG(raw, maxDim)
}

// ThumbnailZip renders the requested pages into a ZIP archive with one
// thumb-<page>.png entry per page, in request order.
func (r *Rasterizer) ThumbnailZip(ctx context.Context, pdfPath string, pages []int, maxDim int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages requested")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, page := range pages {
		thumb, err := r.Thumbnail(ctx, pdfPath, page, maxDim)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create("thumb-" + strconv.Itoa(page) + ".png")
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(thumb); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Rasterizer) renderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "scrivener-thumb-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	p := strconv.Itoa(page)
	prefix := filepath.Join(dir, "page")
	argv := []string{r.bin, "-png", "-r", strconv.Itoa(r.dpi), "-f", p, "-l", p, pdfPath, prefix}
	_, stderr, code, err := r.run.Run(ctx, argv, nil)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%s exited %d: %s", r.bin, code, strings.TrimSpace(string(stderr)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s produced no output for page %d", r.bin, page)
	}
	return os.ReadFile(matches[0])
}

// resizePNG scales the image down so its longest edge is maxDim,
// preserving aspect ratio. Images already within bounds pass through
// unchanged.
func resizePNG(data []byte, maxDim int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if maxDim <= 0 || longest <= maxDim {
		return data, nil
	}

	scale := float64(maxDim) / float64(longest)
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
