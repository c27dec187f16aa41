package loam

import (
	"github.com/aretw0/carecall/pkg/domain"
)

const (
	// KindScenario marks a document holding one call script. It is the default kind.
	KindScenario = "scenario"
	// KindCategories marks a document holding (part of) the reply category table.
	KindCategories = "categories"
)

// ScenarioDocument is the frontmatter (or JSON/YAML body) of a catalog document.
// It uses "mapstructure" tags so Loam can decode any of its supported formats.
type ScenarioDocument struct {
	ID          string         `json:"id" mapstructure:"id"`
	Kind        string         `json:"kind" mapstructure:"kind"`
	Name        string         `json:"name" mapstructure:"name"`
	Description string         `json:"description" mapstructure:"description"`
	Fields      []domain.Field `json:"fields" mapstructure:"fields"`
	Steps       []domain.Step  `json:"steps" mapstructure:"steps"`

	// SystemPrompt falls back to the markdown body when empty.
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`

	// Order sorts the listing; ties are broken by id.
	Order int `json:"order" mapstructure:"order"`

	Categories domain.CategoryTable `json:"categories" mapstructure:"categories"`
}

func (d ScenarioDocument) kind() string {
	if d.Kind == "" {
		return KindScenario
	}
	return d.Kind
}
