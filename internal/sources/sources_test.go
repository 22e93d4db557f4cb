package sources

import (
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
		want     Format
	}{
		{"yaml extension", "bookmarks.yaml", "<html>", FormatHomepageYAML},
		{"yml extension", "services.YML", "", FormatHomepageYAML},
		{"html extension", "export.html", "- a: b", FormatNetscapeHTML},
		{"sniff doctype", "", "<!DOCTYPE NETSCAPE-Bookmark-file-1>", FormatNetscapeHTML},
		{"sniff yaml list", "upload", "- Dev:\n    - GitHub:\n        - href: https://github.com\n", FormatHomepageYAML},
		{"unknown defaults to html", "", "plain words", FormatNetscapeHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.filename, []byte(tt.data)); got != tt.want {
				t.Fatalf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDispatches(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
  <DT><A HREF="https://go.dev">Go</A>
</DL><p>`
	entries, format, err := Parse("", []byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatNetscapeHTML || len(entries) != 1 || entries[0].URL != "https://go.dev" {
		t.Fatalf("unexpected html result: %v %+v", format, entries)
	}

	yml := "- Dev:\n    - GitHub:\n        - href: https://github.com\n"
	entries, format, err = Parse("bookmarks.yaml", []byte(yml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatHomepageYAML || len(entries) != 1 || entries[0].URL != "https://github.com" {
		t.Fatalf("unexpected yaml result: %v %+v", format, entries)
	}
}
