package extract

import (
	"context"
	"strings"
)

// pdfText extracts the embedded text layer of the PDF at path. Layout
// mode preserves the physical column structure of opinions and briefs,
// which downstream citation parsing depends on. A nonzero exit with
// partial stdout is still usable output: damaged PDFs routinely yield
// both.
func (e *Engine) pdfText(ctx context.Context, path string) (text, diag string, code int, err error) {
	stdout, stderr, code, err := e.run.Run(ctx, []string{e.cfg.PDFToText, "-layout", "-enc", "UTF-8", path, "-"}, nil)
	if err != nil {
		return "", "", 0, err
	}
	return string(stdout), strings.TrimSpace(string(stderr)), code, nil
}
