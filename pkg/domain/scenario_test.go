package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenario_Lookups(t *testing.T) {
	s := &Scenario{
		ID:     "demo",
		Fields: []Field{{Name: "client_name", Label: "Client Name", Required: true}, {Name: "office_state"}},
		Steps: []Step{
			{ID: "greeting", Accepts: []string{"greeting_response"}, Next: "bye"},
			{ID: "bye"},
		},
	}

	assert.Equal(t, 0, s.StepIndex("greeting"))
	assert.Equal(t, 1, s.StepIndex("bye"))
	assert.Equal(t, -1, s.StepIndex("missing"))
	assert.Equal(t, []string{"client_name", "office_state"}, s.FieldNames())

	assert.False(t, s.Steps[0].Terminal())
	assert.True(t, s.Steps[1].Terminal())

	sum := s.Summarize()
	sum.Fields[0].Label = "changed"
	assert.Equal(t, "Client Name", s.Fields[0].Label, "summary must not alias scenario fields")
}

func TestCategoryTable_Lookup(t *testing.T) {
	table := CategoryTable{
		{Name: "yes", Keywords: []string{"yes", "yeah"}},
		{Name: "no", Keywords: []string{"no"}},
	}

	kw, ok := table.Lookup("yes")
	assert.True(t, ok)
	assert.Equal(t, []string{"yes", "yeah"}, kw)

	_, ok = table.Lookup("maybe")
	assert.False(t, ok)
}
