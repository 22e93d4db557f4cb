package content

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ExtractText returns the page title and readable text of an HTML document.
// Readability runs first; when it yields no text, the visible text of the
// whole document is used. Text is capped at MaxTextRunes.
func ExtractText(html, pageURL string) (title, text string) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", ""
	}

	if parsed, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(html), parsed); err == nil {
			title = strings.TrimSpace(article.Title)
			text = strings.TrimSpace(article.TextContent)
		}
	}

	if text == "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return title, ""
		}
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		}
		doc.Find("script, style, noscript, template").Remove()
		text = visibleText(doc.Selection)
	}

	return title, truncateRunes(text, MaxTextRunes)
}

// visibleText joins the non-blank lines of the selection's text.
func visibleText(sel *goquery.Selection) string {
	lines := strings.Split(sel.Text(), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Hash is the hex SHA-256 of extracted text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
