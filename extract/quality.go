package extract

import (
	"strings"
	"unicode"
)

// Quality captures metrics about extracted text. It is advisory: the
// OCR fallback triggers on empty/whitespace-only output, and these
// numbers let callers spot garbled-but-nonempty extractions (CIDFont
// without ToUnicode, character-by-character text runs) on their side.
type Quality struct {
	PageCount      int     `json:"page_count"`
	CharsPerPage   float64 `json:"chars_per_page"`
	PrintableRatio float64 `json:"printable_ratio"`
	WordlikeRatio  float64 `json:"wordlike_ratio"`
	HasImages      bool    `json:"has_images"`
}

// Suspect reports whether the text looks like a failed extraction even
// though it is non-empty.
func (q *Quality) Suspect() bool {
	return (q.CharsPerPage < 50 && q.HasImages) || q.PrintableRatio < 0.85
}

func qualityOf(text string, pages int, hasImages bool) *Quality {
	q := &Quality{
		PageCount:      pages,
		PrintableRatio: printableRatio(text),
		WordlikeRatio:  wordlikeRatio(text),
		HasImages:      hasImages,
	}
	if pages > 0 {
		q.CharsPerPage = float64(len([]rune(text))) / float64(pages)
	}
	return q
}

// printableRatio returns the ratio of printable characters.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t\f),
// and U+FFFD.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' || r == '\f' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	// Private Use Area
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	// Replacement character
	if r == 0xFFFD {
		return true
	}
	// Control chars except whitespace
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' && r != '\f' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of word-like tokens (length 2-15).
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
