package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexforge/scrivener/sniff"
	"github.com/lexforge/scrivener/tool"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(fake *tool.Fake) *Engine {
	return New(fake, sniff.New(), Config{
		PageCount: func(string) (int, error) { return 2, nil },
		HasImages: func(string) (bool, error) { return false, nil },
	})
}

func TestDocument_PDFWithTextLayer(t *testing.T) {
	fake := tool.NewFake().
		Script("pdftotext", tool.FakeResult{Stdout: []byte("In the matter of the estate of John Doe, the court finds as follows.")})
	e := newTestEngine(fake)

	path := writeTemp(t, "opinion.pdf", []byte("%PDF-1.4 fixture"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "pdf", OCRAllowed: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, "estate of John Doe") {
		t.Errorf("content = %q", res.Content)
	}
	if res.ExtractedByOCR {
		t.Error("text-layer extraction flagged as OCR")
	}
	if res.PageCount == nil || *res.PageCount != 2 {
		t.Errorf("page count = %v, want 2", res.PageCount)
	}
	if res.Quality == nil {
		t.Error("quality metrics missing for PDF")
	}
	if fake.CalledWith("tesseract") {
		t.Error("OCR ran despite usable text layer")
	}
}

func TestDocument_PDFBlankFallsBackToOCR(t *testing.T) {
	fake := tool.NewFake().
		Script("pdftotext", tool.FakeResult{Stdout: []byte("  \n\f \n")}).
		Script("pdftoppm", tool.FakeResult{Touch: func(argv []string) error {
			prefix := argv[len(argv)-1]
			for _, name := range []string{prefix + "-1.png", prefix + "-2.png"} {
				if err := os.WriteFile(name, []byte("png"), 0o644); err != nil {
					return err
				}
			}
			return nil
		}}).
		Script("tesseract", tool.FakeResult{Stdout: []byte("Recognized page text.")})
	e := newTestEngine(fake)

	path := writeTemp(t, "scan.pdf", []byte("%PDF-1.4 fixture"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "pdf", OCRAllowed: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.ExtractedByOCR {
		t.Fatal("expected OCR fallback")
	}
	pages := strings.Split(res.Content, "\f")
	if len(pages) != 2 {
		t.Fatalf("got %d OCR pages, want 2", len(pages))
	}
	if res.Err != "" || res.ExitCode != 0 {
		t.Errorf("unexpected diagnostic: %q code %d", res.Err, res.ExitCode)
	}
}

func TestDocument_PDFBlankWithoutOCR(t *testing.T) {
	fake := tool.NewFake().
		Script("pdftotext", tool.FakeResult{Stdout: []byte("")})
	e := newTestEngine(fake)

	path := writeTemp(t, "scan.pdf", []byte("%PDF-1.4 fixture"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Err != "no content detected" || res.ExitCode != 1 {
		t.Errorf("got (%q, %d)", res.Err, res.ExitCode)
	}
	if fake.CalledWith("pdftoppm") {
		t.Error("rasterizer ran with OCR disabled")
	}
}

func TestDocument_PDFOCRProducesNothing(t *testing.T) {
	fake := tool.NewFake().
		Script("pdftotext", tool.FakeResult{Stdout: nil}).
		Script("pdftoppm", tool.FakeResult{Touch: func(argv []string) error {
			prefix := argv[len(argv)-1]
			return os.WriteFile(prefix+"-1.png", []byte("png"), 0o644)
		}}).
		Script("tesseract", tool.FakeResult{Stdout: []byte("   \n")})
	e := newTestEngine(fake)

	path := writeTemp(t, "blank.pdf", []byte("%PDF-1.4 fixture"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "pdf", OCRAllowed: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Err != "unable to extract document content" || res.ExitCode != 1 {
		t.Errorf("got (%q, %d)", res.Err, res.ExitCode)
	}
}

func TestDocument_UnknownExtension(t *testing.T) {
	fake := tool.NewFake()
	e := newTestEngine(fake)

	path := writeTemp(t, "archive.zip", []byte("PK\x03\x04"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "zip", OCRAllowed: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Err != "unknown extension" || res.ExitCode != 1 {
		t.Errorf("got (%q, %d)", res.Err, res.ExitCode)
	}
	if res.PageCount != nil {
		t.Error("page count set for non-PDF")
	}
	if len(fake.Calls) != 0 {
		t.Errorf("converters ran for unknown extension: %v", fake.Calls)
	}
}

func TestDocument_DocUsesAntiword(t *testing.T) {
	fake := tool.NewFake().
		Script("antiword", tool.FakeResult{Stdout: []byte("Word document body.")})
	e := newTestEngine(fake)

	path := writeTemp(t, "brief.doc", []byte{0xD0, 0xCF, 0x11, 0xE0})
	res, err := e.Document(context.Background(), Request{Path: path, Extension: ".DOC"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "Word document body." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Extension != "doc" {
		t.Errorf("extension = %q, want doc", res.Extension)
	}
	if res.PageCount != nil {
		t.Error("page count set for non-PDF")
	}
}

func TestDocument_ConverterFailureIsData(t *testing.T) {
	fake := tool.NewFake().
		Script("wpd2text", tool.FakeResult{Stderr: []byte("corrupt prefix area\n"), ExitCode: 139})
	e := newTestEngine(fake)

	path := writeTemp(t, "old.wpd", []byte{0xFF, 0x57, 0x50, 0x43})
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "wpd"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 139 || res.Err != "corrupt prefix area" {
		t.Errorf("got (%q, %d)", res.Err, res.ExitCode)
	}
}

func TestDocument_Docx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(tool.NewFake())
	path := writeTemp(t, "memo.docx", buf.Bytes())
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "docx"})
	if err != nil {
		t.Fatal(err)
	}
	want := "First paragraph.\n\nSecond paragraph."
	if res.Content != want {
		t.Errorf("content = %q, want %q", res.Content, want)
	}
}

func TestDocument_DocxCorruptArchive(t *testing.T) {
	e := newTestEngine(tool.NewFake())
	path := writeTemp(t, "bad.docx", []byte("not a zip at all"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "docx"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 1 || res.Err == "" {
		t.Errorf("corrupt archive not reported: (%q, %d)", res.Err, res.ExitCode)
	}
}

func TestDocument_HTML(t *testing.T) {
	e := newTestEngine(tool.NewFake())
	page := `<html><head><title>t</title><script>alert(1)</script></head>
<body><h1>Opinion</h1><p>The judgment below is affirmed.</p></body></html>`
	path := writeTemp(t, "opinion.html", []byte(page))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "html"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, "Opinion") || !strings.Contains(res.Content, "affirmed") {
		t.Errorf("content = %q", res.Content)
	}
	if strings.Contains(res.Content, "alert(1)") {
		t.Error("script content leaked into extraction")
	}
}

func TestDocument_TextLatin1Fallback(t *testing.T) {
	e := newTestEngine(tool.NewFake())
	// 0xE9 is é in Latin-1 and invalid on its own in UTF-8.
	path := writeTemp(t, "note.txt", []byte("caf\xe9 r\x00esidue"))
	res, err := e.Document(context.Background(), Request{Path: path, Extension: "txt"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "café residue" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestDocument_SniffsWhenExtensionMissing(t *testing.T) {
	fake := tool.NewFake().
		Script("pdftotext", tool.FakeResult{Stdout: []byte("sniffed body text")})
	e := newTestEngine(fake)

	path := writeTemp(t, "upload", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"))
	res, err := e.Document(context.Background(), Request{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Extension != "pdf" {
		t.Errorf("extension = %q, want pdf", res.Extension)
	}
	if res.Content != "sniffed body text" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestDocument_SniffsWholeFile(t *testing.T) {
	fake := tool.NewFake().
		Script("pdftotext", tool.FakeResult{Stdout: []byte("long document body")})
	e := newTestEngine(fake)

	// A multi-kilobyte PDF with tail noise; the resolver must see the
	// actual end of the file, not just a head slice.
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	buf.Write(bytes.Repeat([]byte("% page stream filler\n"), 512))
	buf.WriteString("%%EOF\r\n")

	path := writeTemp(t, "upload", buf.Bytes())
	res, err := e.Document(context.Background(), Request{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Extension != "pdf" {
		t.Errorf("extension = %q, want pdf", res.Extension)
	}
	if res.Content != "long document body" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestDocument_RejectsOversizedFile(t *testing.T) {
	e := New(tool.NewFake(), sniff.New(), Config{
		MaxFileSize: 8,
		PageCount:   func(string) (int, error) { return 1, nil },
		HasImages:   func(string) (bool, error) { return false, nil },
	})
	path := writeTemp(t, "big.txt", bytes.Repeat([]byte("a"), 64))
	if _, err := e.Document(context.Background(), Request{Path: path, Extension: "txt"}); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestDocument_MissingFile(t *testing.T) {
	e := newTestEngine(tool.NewFake())
	if _, err := e.Document(context.Background(), Request{Path: "/nonexistent/file.pdf", Extension: "pdf"}); err == nil {
		t.Fatal("expected stat error")
	}
}

func TestPageImages_NumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-2.png", "page-1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	images, err := pageImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, img := range images {
		got = append(got, filepath.Base(img))
	}
	want := []string{"page-1.png", "page-2.png", "page-10.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
