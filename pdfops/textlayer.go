package pdfops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/lexforge/scrivener/tool"
)

// TextLayerer turns a scanned PDF into a searchable one: each page is
// rasterized, recognized, and the recognized glyphs are stamped back
// over the original page as an invisible text layer. The visual
// document is untouched; selection and search start working.
type TextLayerer struct {
	run       tool.Runner
	pdftoppm  string
	tesseract string
	dpi       int
}

// TextLayerOption configures a TextLayerer.
type TextLayerOption func(*TextLayerer)

// WithTextLayerBinaries overrides the engine binaries.
func WithTextLayerBinaries(pdftoppm, tesseract string) TextLayerOption {
	return func(t *TextLayerer) {
		if pdftoppm != "" {
			t.pdftoppm = pdftoppm
		}
		if tesseract != "" {
			t.tesseract = tesseract
		}
	}
}

// WithTextLayerDPI overrides the recognition resolution.
func WithTextLayerDPI(dpi int) TextLayerOption {
	return func(t *TextLayerer) {
		if dpi > 0 {
			t.dpi = dpi
		}
	}
}

// NewTextLayerer creates a TextLayerer on the given Runner.
func NewTextLayerer(run tool.Runner, opts ...TextLayerOption) *TextLayerer {
	t := &TextLayerer{run: run, pdftoppm: "pdftoppm", tesseract: "tesseract", dpi: 300}
	for _, o := range opts {
		o(t)
	}
	return t
}

var layerImageRe = regexp.MustCompile(`-(\d+)\.png$`)

// Embed writes a searchable copy of the PDF at inPath to outPath.
func (t *TextLayerer) Embed(ctx context.Context, inPath, outPath string) error {
	dir, err := os.MkdirTemp("", "scrivener-layer-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	images, err := t.rasterize(ctx, inPath, dir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no pages rendered from %s", inPath)
	}

	// tesseract's textonly_pdf mode emits a PDF holding only the
	// recognized glyphs, positioned to match the rasterized page.
	layerPDFs := make([]string, 0, len(images))
	for i, img := range images {
		base := filepath.Join(dir, "layer-"+strconv.Itoa(i+1))
		_, stderr, code, err := t.run.Run(ctx, []string{t.tesseract, img, base, "-c", "textonly_pdf=1", "pdf"}, nil)
		if err != nil {
			return err
		}
		if code != 0 {
			return fmt.Errorf("%s exited %d on %s: %s", t.tesseract, code, filepath.Base(img), strings.TrimSpace(string(stderr)))
		}
		layerPDFs = append(layerPDFs, base+".pdf")
	}

	overlay := filepath.Join(dir, "overlay.pdf")
	if len(layerPDFs) == 1 {
		overlay = layerPDFs[0]
	} else if err := api.MergeCreateFile(layerPDFs, overlay, false, nil); err != nil {
		return fmt.Errorf("merge text layers: %w", err)
	}

	// Page selector 0 stamps page i of the overlay onto page i of the
	// target.
	wm, err := api.PDFWatermark(overlay+":0", "pos:c, scale:1 abs, rot:0", true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("build text-layer stamp: %w", err)
	}
	if err := api.AddWatermarksFile(inPath, outPath, nil, wm, nil); err != nil {
		return fmt.Errorf("stamp text layer: %w", err)
	}
	return nil
}

func (t *TextLayerer) rasterize(ctx context.Context, pdfPath, dir string) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	argv := []string{t.pdftoppm, "-r", strconv.Itoa(t.dpi), "-png", pdfPath, prefix}
	_, stderr, code, err := t.run.Run(ctx, argv, nil)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%s exited %d: %s", t.pdftoppm, code, strings.TrimSpace(string(stderr)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return layerPage(matches[i]) < layerPage(matches[j])
	})
	return matches, nil
}

func layerPage(path string) int {
	m := layerImageRe.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
