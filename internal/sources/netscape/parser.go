// Package netscape reads the bookmark HTML files that browsers export.
package netscape

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// Parse returns every anchor with an href found inside a DL list, in
// document order. The folder path is built from the H1-H3 headings of the
// enclosing DT entries, outermost first.
func Parse(r io.Reader) ([]domain.ImportEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookmark html: %w", err)
	}

	entries := make([]domain.ImportEntry, 0)
	doc.Find("dl a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		entries = append(entries, domain.ImportEntry{
			URL:        href,
			Title:      strings.TrimSpace(a.Text()),
			Notes:      description(a),
			Tags:       domain.ParseTags(a.AttrOr("tags", "")),
			FolderPath: folderPath(a),
		})
	})
	return entries, nil
}

// folderPath walks the DL ancestors of a and collects the heading that
// names each one. The outermost list is the file root and has no name.
func folderPath(a *goquery.Selection) []string {
	var reversed []string
	lists := a.ParentsFiltered("dl")
	lists.Each(func(i int, dl *goquery.Selection) {
		if i == lists.Length()-1 {
			return
		}
		if name := heading(dl); name != "" {
			reversed = append(reversed, name)
		}
	})

	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// heading finds the folder name of a nested list: a heading inside the DT
// that contains it, or in the DT (or heading) right before it.
func heading(dl *goquery.Selection) string {
	if dt := dl.Parent(); goquery.NodeName(dt) == "dt" {
		if h := dt.ChildrenFiltered("h1, h2, h3").First(); h.Length() > 0 {
			return strings.TrimSpace(h.Text())
		}
	}
	prev := dl.Prev()
	switch goquery.NodeName(prev) {
	case "h1", "h2", "h3":
		return strings.TrimSpace(prev.Text())
	case "dt":
		return strings.TrimSpace(prev.ChildrenFiltered("h1, h2, h3").First().Text())
	}
	return ""
}

// description returns the DD text that follows the anchor's DT, if any.
func description(a *goquery.Selection) string {
	dt := a.ParentsFiltered("dt").First()
	if dt.Length() == 0 {
		return ""
	}
	next := dt.Next()
	if goquery.NodeName(next) != "dd" {
		return ""
	}
	text := next.Clone()
	text.Find("dl").Remove()
	return strings.TrimSpace(text.Text())
}
