package docsource

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// extractText returns the readable text of a stored document body. HTML is
// reduced to its main article text; everything else is treated as text.
func extractText(body []byte, contentType string, pageURL *url.URL) (string, error) {
	if !isHTML(contentType, body) {
		return string(body), nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if article.Title != "" && !strings.HasPrefix(text, article.Title) {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

func isHTML(contentType string, body []byte) bool {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			return mt == "text/html" || mt == "application/xhtml+xml"
		}
	}
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
