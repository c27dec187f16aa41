package middleware

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/ports"
)

// Mask replaces every masked value.
const Mask = "***"

// DefaultPIIPatterns match the context fields of the built-in scenarios that identify a person.
var DefaultPIIPatterns = []string{"name", "phone", "email", "address"}

// PIIOption configures the PII middleware.
type PIIOption func(*piiMiddleware)

// MaskOnLoad masks states as they are read instead of as they are written.
// The stored sessions keep working while every reader sees redacted data.
func MaskOnLoad() PIIOption {
	return func(m *piiMiddleware) {
		m.onLoad = true
	}
}

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
	onLoad   bool
}

// NewPIIMiddleware creates a middleware that masks context values whose keys match
// one of the patterns. The masked values are also redacted from the transcript.
func NewPIIMiddleware(patternStrings []string, opts ...PIIOption) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		m := &piiMiddleware{next: next, patterns: patterns}
		for _, opt := range opts {
			opt(m)
		}
		return m
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	if m.onLoad {
		return m.next.Save(ctx, sessionID, state)
	}
	return m.next.Save(ctx, sessionID, MaskState(state, m.patterns))
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	state, err := m.next.Load(ctx, sessionID)
	if err != nil || !m.onLoad {
		return state, err
	}
	return MaskState(state, m.patterns), nil
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// MaskState returns a copy of state with matching context values and their
// occurrences in the transcript replaced by Mask. state is left untouched.
func MaskState(state *domain.State, patterns []*regexp.Regexp) *domain.State {
	masked := *state
	masked.Context = make(map[string]string, len(state.Context))

	var secrets []string
	for k, v := range state.Context {
		if matchesAny(k, patterns) {
			masked.Context[k] = Mask
			if v != "" {
				secrets = append(secrets, v)
			}
			continue
		}
		masked.Context[k] = v
	}

	masked.History = append([]string(nil), state.History...)
	masked.Messages = append([]domain.Message(nil), state.Messages...)
	if len(secrets) == 0 {
		return &masked
	}

	// Longest first, so "John Doe" is not half-replaced by a "John" field.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		pairs = append(pairs, s, Mask)
	}
	r := strings.NewReplacer(pairs...)
	for i := range masked.Messages {
		masked.Messages[i].Text = r.Replace(masked.Messages[i].Text)
	}
	return &masked
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
