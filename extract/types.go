package extract

// Format identifies a document type the engine can extract.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatDoc         Format = "doc"
	FormatDocx        Format = "docx"
	FormatWordPerfect Format = "wpd"
	FormatHTML        Format = "html"
	FormatText        Format = "txt"
	FormatUnknown     Format = ""
)

// FormatFromExtension maps a normalized extension (no dot, lowercase)
// to its Format. Unrecognized extensions map to FormatUnknown, which
// the engine reports as a result, never an error.
func FormatFromExtension(ext string) Format {
	switch ext {
	case "pdf":
		return FormatPDF
	case "doc":
		return FormatDoc
	case "docx":
		return FormatDocx
	case "wpd":
		return FormatWordPerfect
	case "html", "htm":
		return FormatHTML
	case "txt", "text":
		return FormatText
	default:
		return FormatUnknown
	}
}

// Request describes one extraction call. The declared extension is the
// routing key: callers in the pipeline know what they uploaded, and the
// mime/extension endpoints exist for callers that don't. When Extension
// is empty the engine falls back to sniffing the content.
type Request struct {
	Path       string
	Extension  string
	OCRAllowed bool
}

// Result is the uniform outcome of an extraction, whatever the input
// format. It is constructed once per request and never cached: every
// call re-extracts from scratch.
type Result struct {
	Content        string   `json:"content"`
	Err            string   `json:"err"`
	ExitCode       int      `json:"error_code"`
	Extension      string   `json:"extension"`
	ExtractedByOCR bool     `json:"extracted_by_ocr"`
	PageCount      *int     `json:"page_count"`
	Quality        *Quality `json:"quality,omitempty"`
}

// Diagnostics the orchestrator reports for the two dead ends.
const (
	diagUnknownExtension = "unknown extension"
	diagNoContent        = "no content detected"
	diagUnableToExtract  = "unable to extract document content"
)

// SupportedFormats returns the extensions with a registered extractor.
func SupportedFormats() []string {
	return []string{"pdf", "doc", "docx", "wpd", "html", "txt"}
}
