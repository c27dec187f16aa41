package ports

import (
	"context"

	"github.com/aretw0/carecall/pkg/domain"
)

// ScenarioLoader defines where the engine gets its call scripts from.
type ScenarioLoader interface {
	// LoadScenarios returns the scenarios in listing order and the category table they reference.
	LoadScenarios(ctx context.Context) ([]domain.Scenario, domain.CategoryTable, error)
}
