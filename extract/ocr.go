package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var pageImageRe = regexp.MustCompile(`-(\d+)\.png$`)

// ocrPDF rasterizes the PDF and recognizes each page image. Pages are
// joined with form feeds so callers can still address page boundaries
// in the recognized text. All intermediate artifacts live in a private
// temp dir removed before return, success or not.
func (e *Engine) ocrPDF(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp("", "scrivener-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr tempdir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	argv := []string{e.cfg.PDFToPPM, "-r", strconv.Itoa(e.cfg.OCRDPI), "-png", path, prefix}
	_, stderr, code, err := e.run.Run(ctx, argv, nil)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s exited %d: %s", e.cfg.PDFToPPM, code, strings.TrimSpace(string(stderr)))
	}

	images, err := pageImages(dir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", nil
	}

	pages := make([]string, 0, len(images))
	for _, img := range images {
		stdout, stderr, code, err := e.run.Run(ctx, []string{e.cfg.Tesseract, img, "stdout", "-l", "eng"}, nil)
		if err != nil {
			return "", err
		}
		if code != 0 {
			return "", fmt.Errorf("%s exited %d on %s: %s", e.cfg.Tesseract, code, filepath.Base(img), strings.TrimSpace(string(stderr)))
		}
		pages = append(pages, string(stdout))
	}
	return strings.Join(pages, "\f"), nil
}

// pageImages lists the rasterized page files in page order. pdftoppm
// zero-pads page numbers per document, so a numeric sort keeps mixed
// widths ordered too.
func pageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	m := pageImageRe.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
