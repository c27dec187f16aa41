package domain

// Reply is the engine's answer to a start or a turn.
type Reply struct {
	Message string `json:"message"`

	// StepID is the step the dialogue sits on after the turn. Empty for remote answers.
	StepID string `json:"step_id,omitempty"`

	// Category is the matched reply category, empty on a re-prompt.
	Category string `json:"category,omitempty"`

	// Matched is false when the user text fit none of the accepted categories.
	Matched bool `json:"matched"`

	Completed bool `json:"is_complete"`

	// ExtractedData carries structured values picked from the turn.
	ExtractedData map[string]any `json:"extracted_data,omitempty"`

	Backend Backend `json:"backend"`
}
