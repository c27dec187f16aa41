package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsBuiltinScenarios(t *testing.T) {
	c := catalog.Default()

	assert.Equal(t, []string{
		"no_schedule",
		"out_of_window",
		"gps_out_of_range",
		"wrong_phone",
		"phone_not_found",
		"duplicate_call",
	}, c.IDs())

	s, ok := c.Scenario("out_of_window")
	require.True(t, ok)
	assert.Equal(t, "Out of Window (Late Clock In)", s.Name)
	assert.Equal(t, "greeting", s.Steps[0].ID)

	idx := s.StepIndex("final_adjustment_notice")
	require.NotEqual(t, -1, idx)
	assert.Contains(t, s.Steps[idx].Agent, "{office_location} state law")
	assert.NotEmpty(t, s.SystemPrompt)

	_, ok = c.Scenario("does_not_exist")
	assert.False(t, ok)
}

func TestDefault_CategoryTable(t *testing.T) {
	c := catalog.Default()

	yes, ok := c.Categories().Lookup("yes")
	require.True(t, ok)
	assert.Equal(t, []string{"yes", "yeah", "sure", "okay", "fine"}, yes)

	cant, ok := c.Categories().Lookup("cant_clock_in")
	require.True(t, ok)
	assert.Contains(t, cant, "can't")

	assert.Len(t, c.Categories(), 23)
}

func TestScenarios_Summaries(t *testing.T) {
	list := catalog.Default().Scenarios()
	require.NotEmpty(t, list)

	first := list[0]
	assert.Equal(t, "no_schedule", first.ID)
	assert.Equal(t, "No Schedule on Calendar", first.Name)
	require.Len(t, first.Fields, 4)
	assert.Equal(t, domain.Field{
		Name:        "client_name",
		Label:       "Client Name",
		Placeholder: "Enter client name",
		Required:    true,
	}, first.Fields[0])
	assert.False(t, first.Fields[2].Required, "regular_schedule is optional")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "unknown category",
			yaml: `
categories:
  - name: "yes"
    keywords: ["yes"]
scenarios:
  - id: s
    steps:
      - id: a
        agent: hi
        accepts: [maybe]
        next: b
      - id: b
        agent: bye
`,
			wantMsg: `unknown category "maybe"`,
		},
		{
			name: "dangling next",
			yaml: `
categories:
  - name: "yes"
    keywords: ["yes"]
scenarios:
  - id: s
    steps:
      - id: a
        agent: hi
        accepts: ["yes"]
        next: nowhere
`,
			wantMsg: `unknown step "nowhere"`,
		},
		{
			name: "uppercase keyword",
			yaml: `
categories:
  - name: "yes"
    keywords: ["Yes"]
scenarios: []
`,
			wantMsg: "must be lowercase",
		},
		{
			name: "no steps",
			yaml: `
categories: []
scenarios:
  - id: empty
`,
			wantMsg: `scenario "empty" has no steps`,
		},
		{
			name: "duplicate step",
			yaml: `
categories: []
scenarios:
  - id: s
    steps:
      - id: a
        agent: one
      - id: a
        agent: two
`,
			wantMsg: `step "a" declared twice`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(tt.yaml))
			require.Error(t, err)

			var catErr *catalog.CatalogError
			require.True(t, errors.As(err, &catErr), "expected a CatalogError, got %T", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := catalog.Parse([]byte("scenarios: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse catalog")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, catalog.Builtin(), 0644))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().IDs(), c.IDs())

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFromLoader_RoundTrip(t *testing.T) {
	c, err := catalog.FromLoader(context.Background(), catalog.Default())
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().IDs(), c.IDs())
	assert.Equal(t, catalog.Default().Categories(), c.Categories())
}
