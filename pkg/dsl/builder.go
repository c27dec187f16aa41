package dsl

import (
	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/domain"
)

// Builder collects scenarios and categories into a catalog.
type Builder struct {
	scenarios  []*ScenarioBuilder
	index      map[string]*ScenarioBuilder
	categories domain.CategoryTable
	declared   bool
}

// New creates an empty catalog builder.
func New() *Builder {
	return &Builder{index: make(map[string]*ScenarioBuilder)}
}

// Scenario adds a scenario, or returns the existing builder for id.
func (b *Builder) Scenario(id string) *ScenarioBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &ScenarioBuilder{
		scenario: domain.Scenario{ID: id},
		index:    make(map[string]int),
	}
	b.scenarios = append(b.scenarios, sb)
	b.index[id] = sb
	return sb
}

// Category declares a reply category. Declaring any category replaces the
// built-in table.
func (b *Builder) Category(name string, keywords ...string) *Builder {
	b.declared = true
	b.categories = append(b.categories, domain.Category{Name: name, Keywords: keywords})
	return b
}

// Build validates everything added so far and returns the catalog.
func (b *Builder) Build() (*catalog.Catalog, error) {
	scenarios := make([]domain.Scenario, 0, len(b.scenarios))
	for _, sb := range b.scenarios {
		scenarios = append(scenarios, sb.Build())
	}

	categories := b.categories
	if !b.declared {
		categories = catalog.Default().Categories()
	}
	return catalog.New(scenarios, categories)
}

// ScenarioBuilder configures one scenario.
type ScenarioBuilder struct {
	scenario domain.Scenario
	steps    []*StepBuilder
	index    map[string]int
}

// Name sets the display name.
func (s *ScenarioBuilder) Name(name string) *ScenarioBuilder {
	s.scenario.Name = name
	return s
}

// Describe sets the description shown in listings.
func (s *ScenarioBuilder) Describe(description string) *ScenarioBuilder {
	s.scenario.Description = description
	return s
}

// Field declares a context field.
func (s *ScenarioBuilder) Field(name, label string, required bool) *ScenarioBuilder {
	s.scenario.Fields = append(s.scenario.Fields, domain.Field{Name: name, Label: label, Required: required})
	return s
}

// Prompt sets the system prompt used by generative responders.
func (s *ScenarioBuilder) Prompt(prompt string) *ScenarioBuilder {
	s.scenario.SystemPrompt = prompt
	return s
}

// Step adds a step, or returns the existing builder for id.
func (s *ScenarioBuilder) Step(id string) *StepBuilder {
	if i, ok := s.index[id]; ok {
		return s.steps[i]
	}
	sb := &StepBuilder{step: domain.Step{ID: id}}
	s.index[id] = len(s.steps)
	s.steps = append(s.steps, sb)
	return sb
}

// Build returns the scenario without validating it.
func (s *ScenarioBuilder) Build() domain.Scenario {
	out := s.scenario
	out.Fields = append([]domain.Field(nil), s.scenario.Fields...)
	out.Steps = make([]domain.Step, 0, len(s.steps))
	for _, sb := range s.steps {
		out.Steps = append(out.Steps, sb.Build())
	}
	return out
}

// StepBuilder configures one step.
type StepBuilder struct {
	step domain.Step
}

// Say sets the agent line. It may reference context fields as {field}.
func (n *StepBuilder) Say(line string) *StepBuilder {
	n.step.Agent = line
	return n
}

// Accepts appends reply categories, highest priority first.
func (n *StepBuilder) Accepts(categories ...string) *StepBuilder {
	n.step.Accepts = append(n.step.Accepts, categories...)
	return n
}

// Go sets the step that follows an accepted reply.
func (n *StepBuilder) Go(next string) *StepBuilder {
	n.step.Next = next
	return n
}

// Terminal makes the step end the call.
func (n *StepBuilder) Terminal() *StepBuilder {
	n.step.Accepts = nil
	n.step.Next = ""
	return n
}

// Build returns the underlying domain.Step.
func (n *StepBuilder) Build() domain.Step {
	out := n.step
	out.Accepts = append([]string(nil), n.step.Accepts...)
	return out
}
