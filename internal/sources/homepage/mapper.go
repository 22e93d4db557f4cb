package homepage

import (
	"sort"
	"strings"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// Mapper converts a Homepage document to import entries
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map walks groups in file order. The group name becomes the folder, the
// item name the title, abbr a tag and description the notes. Items without
// href are skipped.
func (m *Mapper) Map(doc Document) []domain.ImportEntry {
	entries := make([]domain.ImportEntry, 0)

	for _, groupMap := range doc {
		for _, group := range sortedKeys(groupMap) {
			folder := strings.TrimSpace(group)

			for _, itemMap := range groupMap[group] {
				for _, name := range sortedKeys(itemMap) {
					node := itemMap[name]
					e, ok := decodeEntry(&node)
					if !ok || strings.TrimSpace(e.Href) == "" {
						continue
					}

					entry := domain.ImportEntry{
						URL:   strings.TrimSpace(e.Href),
						Title: strings.TrimSpace(name),
						Notes: strings.TrimSpace(e.Description),
						Tags:  domain.ParseTags(e.Abbr),
					}
					if folder != "" {
						entry.FolderPath = []string{folder}
					}
					entries = append(entries, entry)
				}
			}
		}
	}
	return entries
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
