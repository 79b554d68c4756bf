// Package sniff resolves a file's true MIME type and extension from its
// content bytes, independent of the claimed filename.
//
// Magic-number detection alone is not enough for the legacy formats this
// service sees in the wild: certain libmagic versions mislabel
// WordPerfect and old Word binaries, and scanned PDFs with trailing
// whitespace sniff as raw binary. The resolver layers an ordered set of
// override rules and a fix-up table on top of the raw detection.
package sniff

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/lexforge/scrivener/tool"
)

// Result is a resolved (mime, extension) pair. Extension includes the
// leading dot and is empty when no mapping exists, which signals an
// unknown format rather than an error.
type Result struct {
	MIME      string
	Extension string
}

// Resolver sniffs content bytes. The zero value works without the
// file(1) binary; description-based override rules then only apply when
// a Runner is configured.
type Resolver struct {
	run     tool.Runner
	fileBin string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFileCommand routes description sniffing through file(1) on the
// given Runner. The description is what the override rules match on.
func WithFileCommand(run tool.Runner, bin string) Option {
	return func(r *Resolver) {
		r.run = run
		if bin != "" {
			r.fileBin = bin
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{fileBin: "file"}
	for _, o := range opts {
		o(r)
	}
	return r
}

// audioDescRe matches libmagic descriptions of MP3 streams, with or
// without a leading ID3 container.
var audioDescRe = regexp.MustCompile(`(Audio file with ID3.*MPEG.*layer III)|(.*Audio Media.*)`)

// extensionFixups normalizes near-duplicate extensions to the canonical
// form the rest of the pipeline dispatches on.
var extensionFixups = map[string]string{
	".htm":  ".html",
	".xml":  ".html",
	".wsdl": ".html",
	".ksh":  ".txt",
	".asf":  ".wma",
	".dot":  ".doc",
}

// mimeExtensions maps the MIME types this service routes on to their
// canonical extension. Consulted before the sniffer's own table so the
// formats with extractors always resolve the same way.
var mimeExtensions = map[string]string{
	"application/msword":            ".doc",
	"application/vnd.wordperfect":   ".wpd",
	"application/pdf":               ".pdf",
	"text/plain":                    ".txt",
	"text/html":                     ".html",
	"audio/mpeg":                    ".mp3",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// Resolve sniffs content and returns its MIME type and normalized
// extension. Pure over the input bytes: resolving the same content twice
// yields the same pair.
func (r *Resolver) Resolve(ctx context.Context, content []byte) Result {
	mime := r.overrideMIME(ctx, content)
	ext := extensionFor(mime)

	if mime == "application/octet-stream" || ext == "" {
		mime, ext = r.disambiguate(content, mime)
	}

	if fixed, ok := extensionFixups[ext]; ok {
		ext = fixed
	}
	return Result{MIME: mime, Extension: strings.ToLower(ext)}
}

// Description returns the sniffer's human-readable label for the
// content, e.g. "PDF document, version 1.4".
func (r *Resolver) Description(ctx context.Context, content []byte) (string, error) {
	if r.run == nil {
		return "", nil
	}
	out, stderr, code, err := r.run.Run(ctx, []string{r.fileBin, "-b", "-"}, bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &tool.InvocationError{Tool: r.fileBin, Err: errString(stderr)}
	}
	return strings.TrimSpace(string(out)), nil
}

// MIME returns the sniffed MIME type without parameters.
func (r *Resolver) MIME(content []byte) string {
	mt := mimetype.Detect(content)
	return stripParams(mt.String())
}

// overrideMIME applies the ordered workaround rules over the sniffer's
// description label; when none matches, the sniffer's MIME is trusted.
func (r *Resolver) overrideMIME(ctx context.Context, content []byte) string {
	desc, err := r.Description(ctx, content)
	if err == nil && desc != "" {
		switch {
		case strings.HasPrefix(desc, "Composite Document File V2 Document"):
			return "application/msword"
		case desc == "(Corel/WP)":
			return "application/vnd.wordperfect"
		case strings.HasPrefix(desc, "WordPerfect document"):
			return "application/vnd.wordperfect"
		case desc == "C source, ASCII text":
			return "text/plain"
		case audioDescRe.MatchString(desc):
			return "audio/mpeg"
		}
	}
	return r.MIME(content)
}

// disambiguate handles the generic binary placeholder: old WordPerfect
// files and PDFs with trailing whitespace both sniff as octet-stream.
func (r *Resolver) disambiguate(content []byte, rawMIME string) (string, string) {
	head := content
	if len(head) > 40 {
		head = head[:40]
	}
	if bytes.Contains(head, []byte("PDF")) {
		return "application/pdf", ".pdf"
	}

	// Some PDFs carry stray %%EOF\r noise at the tail that defeats the
	// sniffer; strip it and try once more.
	stripped := bytes.TrimRight(content, "%EOF\r\n \t")
	if len(stripped) != len(content) {
		mime := r.MIME(stripped)
		if mime != "application/octet-stream" {
			if ext := extensionFor(mime); ext != "" {
				return mime, ext
			}
		}
	}

	if rawMIME == "application/octet-stream" {
		return "application/vnd.wordperfect", ".wpd"
	}
	return rawMIME, ""
}

func extensionFor(mime string) string {
	if ext, ok := mimeExtensions[stripParams(mime)]; ok {
		return ext
	}
	if mt := mimetype.Lookup(stripParams(mime)); mt != nil {
		return mt.Extension()
	}
	return ""
}

func stripParams(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

func errString(stderr []byte) error {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		s = "exited nonzero"
	}
	return &strError{s}
}

type strError struct{ s string }

func (e *strError) Error() string { return e.s }
