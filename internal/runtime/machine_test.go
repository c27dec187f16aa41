package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/carecall/internal/runtime"
	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(opts ...runtime.Option) *runtime.Machine {
	return runtime.NewMachine(catalog.Default(), opts...)
}

// canonicalReply is the first keyword of the first category a step accepts.
func canonicalReply(t *testing.T, table domain.CategoryTable, step domain.Step) string {
	t.Helper()
	require.NotEmpty(t, step.Accepts, "step %s accepts nothing", step.ID)
	kw, ok := table.Lookup(step.Accepts[0])
	require.True(t, ok)
	return kw[0]
}

func TestMachine_WalkEveryScenario(t *testing.T) {
	cat := catalog.Default()
	m := newMachine()
	ctx := context.Background()

	for _, id := range cat.IDs() {
		t.Run(id, func(t *testing.T) {
			scenario, _ := cat.Scenario(id)

			state, reply, err := m.Start(ctx, domain.NewState("walk-"+id), id)
			require.NoError(t, err)
			assert.Equal(t, scenario.Steps[0].ID, reply.StepID)

			for turns := 0; state.Status == domain.StatusInProgress; turns++ {
				require.Less(t, turns, len(scenario.Steps), "scenario did not terminate")

				step := scenario.Steps[state.StepIndex]
				state, reply, err = m.Submit(ctx, state, canonicalReply(t, cat.Categories(), step))
				require.NoError(t, err)
				assert.True(t, reply.Matched, "step %s did not match its canonical reply", step.ID)
			}

			assert.Equal(t, domain.StatusCompleted, state.Status)
			assert.True(t, reply.Completed)
			assert.Equal(t, scenario.Steps[len(scenario.Steps)-1].ID, state.CurrentStepID)
			assert.Len(t, state.History, len(scenario.Steps))
		})
	}
}

func TestMachine_NoMatchKeepsStep(t *testing.T) {
	cat := catalog.Default()
	m := newMachine()
	ctx := context.Background()

	for _, id := range cat.IDs() {
		scenario, _ := cat.Scenario(id)
		for i, step := range scenario.Steps {
			if step.Terminal() {
				continue
			}
			t.Run(id+"/"+step.ID, func(t *testing.T) {
				state, _, err := m.Start(ctx, domain.NewState("s"), id)
				require.NoError(t, err)
				for j := 0; j < i; j++ {
					state, _, err = m.Submit(ctx, state, canonicalReply(t, cat.Categories(), scenario.Steps[j]))
					require.NoError(t, err)
				}
				require.Equal(t, step.ID, state.CurrentStepID)

				next, reply, err := m.Submit(ctx, state, "qqq zzz")
				require.NoError(t, err)
				assert.Equal(t, runtime.RepromptMessage, reply.Message)
				assert.False(t, reply.Matched)
				assert.False(t, reply.Completed)
				assert.Equal(t, state.StepIndex, next.StepIndex)
				assert.Equal(t, state.CurrentStepID, next.CurrentStepID)
				assert.Equal(t, state.History, next.History, "a failed attempt is not a transition")

				require.Len(t, next.Messages, len(state.Messages)+2)
				assert.Equal(t, domain.SenderUser, next.Messages[len(state.Messages)].Sender)
				assert.Equal(t, "qqq zzz", next.Messages[len(state.Messages)].Text)
			})
		}
	}
}

func TestMachine_YeahSureAdvancesToScheduleType(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	state, _, err := m.Start(ctx, domain.NewState("s"), "no_schedule")
	require.NoError(t, err)
	state, _, err = m.Submit(ctx, state, "I am doing well")
	require.NoError(t, err)
	state, _, err = m.Submit(ctx, state, "I'm working with John Doe")
	require.NoError(t, err)
	require.Equal(t, "check_regular_schedule", state.CurrentStepID)

	state, reply, err := m.Submit(ctx, state, "yeah sure")
	require.NoError(t, err)
	assert.Equal(t, "yes", reply.Category)
	assert.Equal(t, "handle_schedule_type", state.CurrentStepID)
	assert.Equal(t, "handle_schedule_type", reply.StepID)
	assert.Equal(t, map[string]any{"category": "yes", "step": "check_regular_schedule"}, reply.ExtractedData)
	assert.Contains(t, reply.Message, "Wednesday or Friday")
}

func TestMachine_OfficeLocationRendered(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	state, _, err := m.Start(ctx, domain.NewState("s"), "out_of_window")
	require.NoError(t, err)
	state = m.UpdateContext(state, map[string]string{"officeLocation": "Texas"})

	var reply *domain.Reply
	for _, input := range []string{"hi", "i forgot to clock in", "9am", "sure", "john", "9:05", "hello"} {
		state, reply, err = m.Submit(ctx, state, input)
		require.NoError(t, err)
		require.True(t, reply.Matched, "input %q", input)
	}

	assert.Equal(t, "final_adjustment_notice", state.CurrentStepID)
	assert.Contains(t, reply.Message, "Texas state law")

	line, err := m.Render(state)
	require.NoError(t, err)
	assert.Equal(t, reply.Message, line)
}

func TestMachine_StartClearsContext(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	state, _, err := m.Start(ctx, domain.NewState("s"), "no_schedule")
	require.NoError(t, err)
	state = m.UpdateContext(state, map[string]string{"client_name": "Smith", "office_location": "Texas"})

	state, _, err = m.Start(ctx, state, "gps_out_of_range")
	require.NoError(t, err)
	assert.Empty(t, state.Context)
	assert.Equal(t, []string{"greeting"}, state.History)
	require.Len(t, state.Messages, 1)
}

func TestMachine_UnknownScenario(t *testing.T) {
	_, _, err := newMachine().Start(context.Background(), domain.NewState("s"), "does_not_exist")
	assert.ErrorIs(t, err, domain.ErrUnknownScenario)
}

func TestMachine_SubmitInvalidState(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	_, _, err := m.Submit(ctx, domain.NewState("s"), "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)

	_, _, err = m.Submit(ctx, nil, "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)

	state, reply, err := m.Start(ctx, domain.NewState("s"), "duplicate_call")
	require.NoError(t, err)
	assert.True(t, reply.Completed, "a single terminal step completes on start")
	assert.Equal(t, domain.StatusCompleted, state.Status)

	_, _, err = m.Submit(ctx, state, "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)
}

func TestMachine_MatchOnStepWithoutSuccessorCloses(t *testing.T) {
	cat, err := catalog.New([]domain.Scenario{{
		ID: "short",
		Steps: []domain.Step{
			{ID: "ask", Agent: "Ready?", Accepts: []string{"yes"}},
		},
	}}, domain.CategoryTable{{Name: "yes", Keywords: []string{"yes"}}})
	require.NoError(t, err)

	m := runtime.NewMachine(cat)
	ctx := context.Background()

	state, _, err := m.Start(ctx, domain.NewState("s"), "short")
	require.NoError(t, err)

	state, reply, err := m.Submit(ctx, state, "yes")
	require.NoError(t, err)
	assert.Equal(t, runtime.ClosingMessage, reply.Message)
	assert.True(t, reply.Completed)
	assert.Equal(t, domain.StatusCompleted, state.Status)
}

func TestMachine_DoesNotMutateInput(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	state, _, err := m.Start(ctx, domain.NewState("s"), "wrong_phone")
	require.NoError(t, err)
	before := len(state.Messages)

	_, _, err = m.Submit(ctx, state, "hello")
	require.NoError(t, err)
	updated := m.UpdateContext(state, map[string]string{"client_phone": "555"})

	assert.Equal(t, "greeting", state.CurrentStepID)
	assert.Len(t, state.Messages, before)
	assert.Empty(t, state.Context)
	assert.Equal(t, "555", updated.Context["client_phone"])
}

func TestMachine_Reset(t *testing.T) {
	m := newMachine()
	state, _, err := m.Start(context.Background(), domain.NewState("s"), "wrong_phone")
	require.NoError(t, err)
	state = m.UpdateContext(state, map[string]string{"client_name": "Ann"})

	fresh := m.Reset(state)
	assert.Equal(t, "s", fresh.SessionID)
	assert.Equal(t, domain.StatusNotStarted, fresh.Status)
	assert.Empty(t, fresh.Context)
	assert.Empty(t, fresh.History)
	assert.Empty(t, fresh.ScenarioID)

	_, err = m.Render(fresh)
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)
}

func TestMachine_HooksAndClock(t *testing.T) {
	fixed := time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC)
	var events []string

	m := newMachine(
		runtime.WithClock(func() time.Time { return fixed }),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepEnter: func(_ context.Context, e *domain.StepEvent) { events = append(events, "enter:"+e.StepID) },
			OnStepLeave: func(_ context.Context, e *domain.StepEvent) {
				events = append(events, "leave:"+e.StepID+":"+e.Category)
			},
			OnNoMatch:  func(_ context.Context, e *domain.StepEvent) { events = append(events, "nomatch:"+e.StepID) },
			OnComplete: func(_ context.Context, e *domain.StepEvent) { events = append(events, "complete:"+e.StepID) },
		}),
	)
	ctx := context.Background()

	state, _, err := m.Start(ctx, domain.NewState("s"), "gps_out_of_range")
	require.NoError(t, err)
	state, _, err = m.Submit(ctx, state, "blah")
	require.NoError(t, err)
	_, _, err = m.Submit(ctx, state, "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"enter:greeting",
		"nomatch:greeting",
		"leave:greeting:greeting_response",
		"enter:gps_notice",
	}, events)
	assert.True(t, state.Messages[0].Timestamp.Equal(fixed))
}
