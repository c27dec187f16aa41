// Package catalog holds the call scripts the engine can run.
//
// The built-in catalog is embedded from scenarios.yaml. Other catalogs can be
// parsed from YAML documents of the same shape or built from any ports.ScenarioLoader.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/ports"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var builtin []byte

// Catalog is an immutable, validated set of scenarios and the category table they use.
type Catalog struct {
	scenarios  []domain.Scenario
	index      map[string]int
	categories domain.CategoryTable
}

// document is the YAML shape of a catalog file.
type document struct {
	Categories domain.CategoryTable `yaml:"categories"`
	Scenarios  []domain.Scenario    `yaml:"scenarios"`
}

// New validates the scenarios against the category table and builds a Catalog.
func New(scenarios []domain.Scenario, categories domain.CategoryTable) (*Catalog, error) {
	if err := Validate(scenarios, categories); err != nil {
		return nil, err
	}

	c := &Catalog{
		scenarios:  make([]domain.Scenario, len(scenarios)),
		index:      make(map[string]int, len(scenarios)),
		categories: make(domain.CategoryTable, len(categories)),
	}
	copy(c.scenarios, scenarios)
	copy(c.categories, categories)
	for i, s := range c.scenarios {
		c.index[s.ID] = i
	}
	return c, nil
}

// Parse reads a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Scenarios, doc.Categories)
}

// Load reads a YAML catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// FromLoader builds a Catalog from any scenario source.
func FromLoader(ctx context.Context, loader ports.ScenarioLoader) (*Catalog, error) {
	scenarios, categories, err := loader.LoadScenarios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}
	return New(scenarios, categories)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Parse(builtin)
})

// Default returns the built-in caregiver call scripts.
func Default() *Catalog {
	c, err := defaultCatalog()
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Builtin returns the raw embedded YAML.
func Builtin() []byte {
	out := make([]byte, len(builtin))
	copy(out, builtin)
	return out
}

// LoadScenarios implements ports.ScenarioLoader.
func (c *Catalog) LoadScenarios(ctx context.Context) ([]domain.Scenario, domain.CategoryTable, error) {
	scenarios := make([]domain.Scenario, len(c.scenarios))
	copy(scenarios, c.scenarios)
	return scenarios, c.Categories(), nil
}

// Scenario returns the scenario with the given id.
// The returned value is shared and must not be modified.
func (c *Catalog) Scenario(id string) (*domain.Scenario, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return &c.scenarios[i], true
}

// Scenarios lists the scenarios in catalog order.
func (c *Catalog) Scenarios() []domain.Summary {
	out := make([]domain.Summary, 0, len(c.scenarios))
	for i := range c.scenarios {
		out = append(out, c.scenarios[i].Summarize())
	}
	return out
}

// IDs returns the scenario ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		ids = append(ids, s.ID)
	}
	return ids
}

// Categories returns a copy of the category table.
func (c *Catalog) Categories() domain.CategoryTable {
	out := make(domain.CategoryTable, len(c.categories))
	copy(out, c.categories)
	return out
}
