package domain

// StateDiff represents the changes between two states.
// It is serialized to JSON for partial updates on streaming clients.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentStepID *string  `json:"current_step_id,omitempty"`
	Status        *Status  `json:"status,omitempty"`
	Backend       *Backend `json:"backend,omitempty"`

	// Context contains only changed, added or deleted keys.
	// Deleted keys carry a nil value.
	Context map[string]*string `json:"context,omitempty"`

	History  *HistoryDelta `json:"history,omitempty"`
	Messages []Message     `json:"messages,omitempty"`
}

// HistoryDelta represents steps appended to the path.
type HistoryDelta struct {
	Appended []string `json:"appended"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// A nil result means nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: newState.SessionID}

	if oldState == nil || oldState.CurrentStepID != newState.CurrentStepID {
		if newState.CurrentStepID != "" || oldState != nil {
			id := newState.CurrentStepID
			diff.CurrentStepID = &id
		}
	}
	if oldState == nil || oldState.Status != newState.Status {
		status := newState.Status
		diff.Status = &status
	}
	if oldState != nil && oldState.Backend != newState.Backend {
		backend := newState.Backend
		diff.Backend = &backend
	}

	diff.Context = diffContext(oldState, newState)
	diff.History = diffHistory(oldState, newState)
	diff.Messages = diffMessages(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffContext(old, new *State) map[string]*string {
	delta := make(map[string]*string)

	var before map[string]string
	if old != nil {
		before = old.Context
	}

	for k, v := range new.Context {
		if prev, ok := before[k]; !ok || prev != v {
			val := v
			delta[k] = &val
		}
	}
	for k := range before {
		if _, ok := new.Context[k]; !ok {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes append-only history. A shrunk history (reset) yields no delta;
// the status change already tells clients to start over.
func diffHistory(old, new *State) *HistoryDelta {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return &HistoryDelta{Appended: append([]string(nil), new.History...)}
	}
	if len(new.History) > len(old.History) {
		return &HistoryDelta{Appended: append([]string(nil), new.History[len(old.History):]...)}
	}
	return nil
}

func diffMessages(old, new *State) []Message {
	from := 0
	if old != nil {
		from = len(old.Messages)
	}
	if len(new.Messages) <= from {
		return nil
	}
	return append([]Message(nil), new.Messages[from:]...)
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentStepID == nil &&
		d.Status == nil &&
		d.Backend == nil &&
		len(d.Context) == 0 &&
		d.History == nil &&
		len(d.Messages) == 0
}
