package netscape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nested = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
  <DT><H3>Root Folder</H3>
  <DL><p>
    <DT><A HREF="https://example.com/a" TAGS="go,Web">A</A>
    <DD>First link
    <DT><H3>Inner Folder</H3>
    <DL><p>
      <DT><A HREF="https://example.com/b">B</A>
      <DT><A HREF="https://example.com/c#frag">C</A>
    </DL><p>
  </DL><p>
  <DT><A HREF="https://example.com/root">Root Link</A>
  <DT><A HREF="  ">blank</A>
</DL><p>
`

func TestParseNestedFolders(t *testing.T) {
	entries, err := Parse(strings.NewReader(nested))
	require.NoError(t, err)

	var urls []string
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	assert.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c#frag",
		"https://example.com/root",
	}, urls)

	assert.Equal(t, []string{"Root Folder"}, entries[0].FolderPath)
	assert.Equal(t, []string{"Root Folder", "Inner Folder"}, entries[1].FolderPath)
	assert.Equal(t, []string{"Root Folder", "Inner Folder"}, entries[2].FolderPath)
	assert.Empty(t, entries[3].FolderPath)

	assert.Equal(t, "A", entries[0].Title)
	assert.Equal(t, "First link", entries[0].Notes)
	assert.Equal(t, []string{"go", "web"}, entries[0].Tags)
	assert.Empty(t, entries[1].Notes)
	assert.Empty(t, entries[1].Tags)
}

func TestParseKeepsEmptyTitle(t *testing.T) {
	entries, err := Parse(strings.NewReader(`<DL><p><DT><A HREF="https://example.com/no-title"></A></DL><p>`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/no-title", entries[0].URL)
	assert.Equal(t, "", entries[0].Title)
}

func TestParseWithoutList(t *testing.T) {
	entries, err := Parse(strings.NewReader(`<p><a href="https://example.com">loose</a></p>`))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
