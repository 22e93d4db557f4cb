// Package sources turns uploaded bookmark files into import entries.
package sources

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/sources/homepage"
	"github.com/MrSnakeDoc/linkloom/internal/sources/netscape"
)

// Format is the closed set of supported upload formats.
type Format int

const (
	FormatNetscapeHTML Format = iota
	FormatHomepageYAML
)

func (f Format) String() string {
	if f == FormatHomepageYAML {
		return "homepage_yaml"
	}
	return "netscape_html"
}

// Detect picks the format from the file extension and falls back to
// sniffing the content. Anything that does not look like YAML is read as
// HTML.
func Detect(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatHomepageYAML
	case ".html", ".htm":
		return FormatNetscapeHTML
	}

	head := bytes.ToLower(bytes.TrimSpace(data))
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.HasPrefix(head, []byte("<")) || bytes.Contains(head, []byte("<dl")) {
		return FormatNetscapeHTML
	}
	if bytes.HasPrefix(head, []byte("-")) || bytes.HasPrefix(head, []byte("---")) {
		return FormatHomepageYAML
	}
	return FormatNetscapeHTML
}

// Parse reads an upload in the detected format.
func Parse(filename string, data []byte) ([]domain.ImportEntry, Format, error) {
	format := Detect(filename, data)
	var (
		entries []domain.ImportEntry
		err     error
	)
	switch format {
	case FormatHomepageYAML:
		entries, err = homepage.Parse(data)
	default:
		entries, err = netscape.Parse(bytes.NewReader(data))
	}
	return entries, format, err
}
