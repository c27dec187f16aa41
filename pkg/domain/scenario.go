package domain

// Field describes one context field a scenario uses, for form-style hosts.
type Field struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Label       string `json:"label" yaml:"label" mapstructure:"label"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder" mapstructure:"placeholder"`
	Required    bool   `json:"required" yaml:"required" mapstructure:"required"`
}

// Step is a single node of a call script.
type Step struct {
	ID string `json:"id" yaml:"id" mapstructure:"id"`

	// Agent is the line spoken by the agent. It may contain {field} tokens.
	Agent string `json:"agent" yaml:"agent" mapstructure:"agent"`

	// Accepts lists the reply categories that move the call forward, in priority order.
	Accepts []string `json:"accepts,omitempty" yaml:"accepts" mapstructure:"accepts"`

	// Next is the id of the following step. Empty means the step ends the call.
	Next string `json:"next,omitempty" yaml:"next" mapstructure:"next"`
}

// Terminal reports whether reaching the step ends the call on its own.
func (s Step) Terminal() bool {
	return s.Next == "" && len(s.Accepts) == 0
}

// Scenario is an immutable call script.
type Scenario struct {
	ID          string  `json:"id" yaml:"id" mapstructure:"id"`
	Name        string  `json:"name" yaml:"name" mapstructure:"name"`
	Description string  `json:"description" yaml:"description" mapstructure:"description"`
	Fields      []Field `json:"fields,omitempty" yaml:"fields" mapstructure:"fields"`
	Steps       []Step  `json:"steps" yaml:"steps" mapstructure:"steps"`

	// SystemPrompt guides generative responders. The local engine ignores it.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt" mapstructure:"system_prompt"`
}

// StepIndex returns the position of the step with the given id, or -1.
func (s *Scenario) StepIndex(id string) int {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// FieldNames returns the names of the scenario fields in declaration order.
func (s *Scenario) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Summary is the listing view of a scenario.
type Summary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// Summarize builds the listing view.
func (s *Scenario) Summarize() Summary {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	return Summary{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Fields:      fields,
	}
}

// Category is a named bucket of reply keywords.
type Category struct {
	Name     string   `json:"name" yaml:"name" mapstructure:"name"`
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
}

// CategoryTable is an ordered list of categories. Order matters only for listing;
// classification priority comes from the step's Accepts order.
type CategoryTable []Category

// Lookup returns the keywords of the named category.
func (t CategoryTable) Lookup(name string) ([]string, bool) {
	for _, c := range t {
		if c.Name == name {
			return c.Keywords, true
		}
	}
	return nil, false
}
