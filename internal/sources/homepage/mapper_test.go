package homepage

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func node(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	return *doc.Content[0]
}

func TestMapperMapSortsKeysWithinItem(t *testing.T) {
	doc := Document{
		{
			"Group": []map[string]yaml.Node{
				{
					"Zeta":  node(t, "- href: https://zeta.example"),
					"Alpha": node(t, "href: https://alpha.example"),
				},
			},
		},
	}

	entries := NewMapper().Map(doc)
	if len(entries) != 2 {
		t.Fatalf("Map() returned %d entries, want 2", len(entries))
	}
	if entries[0].Title != "Alpha" || entries[1].Title != "Zeta" {
		t.Errorf("Map() order = %q, %q", entries[0].Title, entries[1].Title)
	}
}

func TestMapperMapSkipsUnusableItems(t *testing.T) {
	doc := Document{
		{
			"Test": []map[string]yaml.Node{
				{"Empty list": node(t, "[]")},
				{"Scalar": node(t, "just text")},
				{"No href": node(t, "abbr: NH")},
			},
		},
	}

	entries := NewMapper().Map(doc)
	if len(entries) != 0 {
		t.Errorf("Map() returned %d entries, want 0", len(entries))
	}
}

func TestMapperMapEmptyDocument(t *testing.T) {
	entries := NewMapper().Map(Document{})
	if entries == nil || len(entries) != 0 {
		t.Errorf("Map() = %v, want empty slice", entries)
	}
}
