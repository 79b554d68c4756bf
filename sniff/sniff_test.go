package sniff

import (
	"bytes"
	"context"
	"testing"

	"github.com/lexforge/scrivener/tool"
)

func resolverWithDescription(desc string) *Resolver {
	fake := tool.NewFake().Script("file", tool.FakeResult{Stdout: []byte(desc + "\n")})
	return New(WithFileCommand(fake, "file"))
}

func TestResolve_PDFContent(t *testing.T) {
	r := New()
	res := r.Resolve(context.Background(), []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"))
	if res.MIME != "application/pdf" {
		t.Errorf("mime = %q, want application/pdf", res.MIME)
	}
	if res.Extension != ".pdf" {
		t.Errorf("extension = %q, want .pdf", res.Extension)
	}
}

func TestResolve_HTMLContent(t *testing.T) {
	r := New()
	res := r.Resolve(context.Background(), []byte("<html><body><p>hi</p></body></html>"))
	if res.Extension != ".html" {
		t.Errorf("extension = %q, want .html", res.Extension)
	}
}

func TestResolve_XMLFixedUpToHTML(t *testing.T) {
	// Court sites serve XHTML opinions with an XML prolog; the fix-up
	// table folds those into the HTML extractor's lane.
	r := New()
	res := r.Resolve(context.Background(), []byte(`<?xml version="1.0"?><note><to>x</to></note>`))
	if res.Extension != ".html" {
		t.Errorf("extension = %q, want .html", res.Extension)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := New()
	content := []byte("%PDF-1.7\nsome pdf body\n%%EOF")
	a := r.Resolve(context.Background(), content)
	b := r.Resolve(context.Background(), content)
	if a != b {
		t.Fatalf("resolve not idempotent: %+v vs %+v", a, b)
	}
}

func TestResolve_DescriptionOverrides(t *testing.T) {
	tests := []struct {
		desc string
		mime string
		ext  string
	}{
		{"Composite Document File V2 Document, Little Endian, Os: Windows", "application/msword", ".doc"},
		{"(Corel/WP)", "application/vnd.wordperfect", ".wpd"},
		{"WordPerfect document", "application/vnd.wordperfect", ".wpd"},
		{"C source, ASCII text", "text/plain", ".txt"},
		{"Audio file with ID3 version 2.4.0, contains:MPEG ADTS, layer III", "audio/mpeg", ".mp3"},
		{"MPEG ADTS Audio Media something", "audio/mpeg", ".mp3"},
	}

	for _, tt := range tests {
		r := resolverWithDescription(tt.desc)
		res := r.Resolve(context.Background(), bytes.Repeat([]byte{0x13, 0x37}, 64))
		if res.MIME != tt.mime {
			t.Errorf("%q: mime = %q, want %q", tt.desc, res.MIME, tt.mime)
		}
		if res.Extension != tt.ext {
			t.Errorf("%q: extension = %q, want %q", tt.desc, res.Extension, tt.ext)
		}
	}
}

func TestResolve_BinaryPlaceholderWithPDFHead(t *testing.T) {
	// Damaged PDFs lose their leading magic but still say "PDF" early on.
	content := append([]byte{0x00, 0x01}, []byte("PDF-ish payload that defeats the sniffer")...)
	r := New()
	res := r.Resolve(context.Background(), content)
	if res.Extension != ".pdf" {
		t.Errorf("extension = %q, want .pdf", res.Extension)
	}
	if res.MIME != "application/pdf" {
		t.Errorf("mime = %q, want application/pdf", res.MIME)
	}
}

func TestResolve_BinaryPlaceholderFallsBackToWPD(t *testing.T) {
	content := bytes.Repeat([]byte{0xFF, 0x00, 0x7B}, 32)
	r := New()
	res := r.Resolve(context.Background(), content)
	if res.Extension != ".wpd" {
		t.Errorf("extension = %q, want .wpd", res.Extension)
	}
}

func TestDescription_NoRunnerConfigured(t *testing.T) {
	r := New()
	desc, err := r.Description(context.Background(), []byte("x"))
	if err != nil || desc != "" {
		t.Fatalf("got (%q, %v), want empty and nil", desc, err)
	}
}

func TestMIME_StripsParameters(t *testing.T) {
	r := New()
	m := r.MIME([]byte("plain words here"))
	if m != "text/plain" {
		t.Errorf("mime = %q, want text/plain", m)
	}
}
