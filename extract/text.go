package extract

import (
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// textResult reads a plain-text file. Files that are not valid UTF-8
// are reinterpreted as Latin-1, which decodes every byte sequence, so
// legacy court filings never fail outright. Embedded NULs are dropped
// either way.
func textResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if decErr != nil {
			return Result{Err: decErr.Error(), ExitCode: 1}, nil
		}
		text = string(decoded)
	}
	text = strings.ReplaceAll(text, "\x00", "")
	return Result{Content: text}, nil
}
