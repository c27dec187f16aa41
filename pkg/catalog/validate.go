package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/carecall/pkg/domain"
)

// CatalogError lists every problem found while validating a catalog.
type CatalogError struct {
	Problems []error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("invalid catalog: %v", errors.Join(e.Problems...))
}

// Unwrap exposes the individual problems to errors.Is / errors.As.
func (e *CatalogError) Unwrap() []error {
	return e.Problems
}

// Validate checks the structural rules of a catalog:
// unique scenario and step ids, known categories, resolvable next steps,
// and non-empty lowercase keywords.
func Validate(scenarios []domain.Scenario, categories domain.CategoryTable) error {
	var problems []error
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c.Name == "" {
			report("category with empty name")
			continue
		}
		if known[c.Name] {
			report("category %q declared twice", c.Name)
		}
		known[c.Name] = true
		if len(c.Keywords) == 0 {
			report("category %q has no keywords", c.Name)
		}
		for _, kw := range c.Keywords {
			if strings.TrimSpace(kw) == "" {
				report("category %q has an empty keyword", c.Name)
			} else if kw != strings.ToLower(kw) {
				report("category %q keyword %q must be lowercase", c.Name, kw)
			}
		}
	}

	seenScenario := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if s.ID == "" {
			report("scenario with empty id")
			continue
		}
		if seenScenario[s.ID] {
			report("scenario %q declared twice", s.ID)
		}
		seenScenario[s.ID] = true

		if len(s.Steps) == 0 {
			report("scenario %q has no steps", s.ID)
			continue
		}

		steps := make(map[string]bool, len(s.Steps))
		for _, st := range s.Steps {
			if st.ID == "" {
				report("scenario %q has a step with empty id", s.ID)
				continue
			}
			if steps[st.ID] {
				report("scenario %q: step %q declared twice", s.ID, st.ID)
			}
			steps[st.ID] = true
		}

		for _, st := range s.Steps {
			for _, cat := range st.Accepts {
				if !known[cat] {
					report("scenario %q: step %q accepts unknown category %q", s.ID, st.ID, cat)
				}
			}
			if st.Next != "" && !steps[st.Next] {
				report("scenario %q: step %q points to unknown step %q", s.ID, st.ID, st.Next)
			}
			if st.Next != "" && len(st.Accepts) == 0 {
				report("scenario %q: step %q has a next step but accepts no reply", s.ID, st.ID)
			}
		}
	}

	if len(problems) > 0 {
		return &CatalogError{Problems: problems}
	}
	return nil
}
