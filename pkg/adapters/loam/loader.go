package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to the ports.ScenarioLoader interface.
// Every document in the repository is either a scenario or a category table.
type Loader struct {
	Repo *loam.TypedRepository[ScenarioDocument]

	// Fallback supplies the category table when the repository declares none.
	Fallback domain.CategoryTable
}

// New creates a new Loam adapter. Without category documents the built-in
// category table is used.
func New(repo *loam.TypedRepository[ScenarioDocument]) *Loader {
	return &Loader{
		Repo:     repo,
		Fallback: catalog.Default().Categories(),
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog dir: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
		loam.WithVersioning(false),
		loam.WithForceTemp(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ScenarioDocument](repo)), nil
}

// Load builds a validated catalog from the repository.
func (l *Loader) Load(ctx context.Context) (*catalog.Catalog, error) {
	return catalog.FromLoader(ctx, l)
}

// LoadScenarios implements ports.ScenarioLoader.
func (l *Loader) LoadScenarios(ctx context.Context) ([]domain.Scenario, domain.CategoryTable, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loam list failed: %w", err)
	}

	type entry struct {
		order    int
		scenario domain.Scenario
	}

	seen := make(map[string]string)
	var (
		entries    []entry
		categories domain.CategoryTable
		declared   bool
	)

	for _, doc := range docs {
		meta := doc.Data
		switch meta.kind() {
		case KindCategories:
			declared = true
			categories = append(categories, meta.Categories...)
			continue
		case KindScenario:
		default:
			return nil, nil, fmt.Errorf("document %s: unknown kind %q", doc.ID, meta.Kind)
		}

		rawID := meta.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, nil, fmt.Errorf("collision detected: scenario '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID

		prompt := meta.SystemPrompt
		if prompt == "" {
			prompt = strings.TrimSpace(doc.Content)
		}

		entries = append(entries, entry{
			order: meta.Order,
			scenario: domain.Scenario{
				ID:           id,
				Name:         meta.Name,
				Description:  meta.Description,
				Fields:       meta.Fields,
				Steps:        meta.Steps,
				SystemPrompt: prompt,
			},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].scenario.ID < entries[j].scenario.ID
	})

	scenarios := make([]domain.Scenario, 0, len(entries))
	for _, e := range entries {
		scenarios = append(scenarios, e.scenario)
	}

	if !declared {
		categories = append(domain.CategoryTable(nil), l.Fallback...)
	}
	return scenarios, categories, nil
}

// Watch reports the id of every changed catalog document until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
