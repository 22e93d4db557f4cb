package homepage

import "gopkg.in/yaml.v3"

// Document is the top-level structure shared by Homepage's bookmarks.yaml
// and services.yaml: a list of groups, each holding a list of named items.
// Items stay as raw nodes because the two files shape them differently.
type Document []map[string][]map[string]yaml.Node

// Entry holds the item properties LinkLoom imports.
//
// bookmarks.yaml wraps them in a one-element list under the item name
// ("Github: [{abbr: GH, href: ...}]"); services.yaml puts them directly
// under the item name.
type Entry struct {
	Abbr        string `yaml:"abbr"`
	Href        string `yaml:"href"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
}

func decodeEntry(node *yaml.Node) (Entry, bool) {
	var e Entry
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) == 0 || node.Content[0].Decode(&e) != nil {
			return Entry{}, false
		}
	case yaml.MappingNode:
		if node.Decode(&e) != nil {
			return Entry{}, false
		}
	default:
		return Entry{}, false
	}
	return e, true
}
