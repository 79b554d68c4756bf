package extract

import (
	"bytes"
	"os"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// htmlPolicy strips scripts, styles, event handlers, and anything else
// the markdown pass should never see. Court-site HTML is hostile input.
var htmlPolicy = bluemonday.UGCPolicy()

// htmlResult sanitizes the document and converts it to markdown, which
// keeps headings, lists, and links legible as plain text. If the
// converter rejects the document a raw text walk is still better than
// nothing.
func htmlResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	sanitized := htmlPolicy.SanitizeBytes(data)
	md, convErr := htmltomarkdown.ConvertString(string(sanitized))
	if convErr == nil && strings.TrimSpace(md) != "" {
		return Result{Content: md}, nil
	}

	text, walkErr := htmlTextFallback(sanitized)
	if walkErr != nil {
		return Result{Err: walkErr.Error(), ExitCode: 1}, nil
	}
	return Result{Content: text}, nil
}

// htmlTextFallback collects visible text nodes in document order.
func htmlTextFallback(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String(), nil
}
