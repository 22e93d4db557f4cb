package homepage

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Parse decodes a bookmarks.yaml or services.yaml upload into import
// entries.
func Parse(data []byte) ([]domain.ImportEntry, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return NewMapper().Map(doc), nil
}

// Decode strips Homepage template variables and unmarshals the document.
func Decode(data []byte) (Document, error) {
	data = stripTemplateVariables(data)

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse homepage yaml: %w", err)
	}
	return doc, nil
}

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
