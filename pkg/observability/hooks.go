package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/carecall/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level, and fallbacks at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	step := func(msg string) func(context.Context, *domain.StepEvent) {
		return func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, msg,
				"session_id", e.SessionID,
				"scenario_id", e.ScenarioID,
				"step_id", e.StepID,
				"category", e.Category,
			)
		}
	}
	return domain.LifecycleHooks{
		OnStepEnter: step("step_enter"),
		OnStepLeave: step("step_leave"),
		OnNoMatch:   step("no_match"),
		OnComplete:  step("complete"),
		OnFallback: func(ctx context.Context, e *domain.FallbackEvent) {
			logger.WarnContext(ctx, "fallback",
				"session_id", e.SessionID,
				"scenario_id", e.ScenarioID,
				"op", e.Operation,
				"err", e.Err,
			)
		},
	}
}

// Combine calls every non-nil hook in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks

	stepFns := func(pick func(domain.LifecycleHooks) func(context.Context, *domain.StepEvent)) func(context.Context, *domain.StepEvent) {
		var fns []func(context.Context, *domain.StepEvent)
		for _, s := range sets {
			if fn := pick(s); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, e *domain.StepEvent) {
			for _, fn := range fns {
				fn(ctx, e)
			}
		}
	}

	out.OnStepEnter = stepFns(func(h domain.LifecycleHooks) func(context.Context, *domain.StepEvent) { return h.OnStepEnter })
	out.OnStepLeave = stepFns(func(h domain.LifecycleHooks) func(context.Context, *domain.StepEvent) { return h.OnStepLeave })
	out.OnNoMatch = stepFns(func(h domain.LifecycleHooks) func(context.Context, *domain.StepEvent) { return h.OnNoMatch })
	out.OnComplete = stepFns(func(h domain.LifecycleHooks) func(context.Context, *domain.StepEvent) { return h.OnComplete })

	var fallbacks []func(context.Context, *domain.FallbackEvent)
	for _, s := range sets {
		if s.OnFallback != nil {
			fallbacks = append(fallbacks, s.OnFallback)
		}
	}
	if len(fallbacks) > 0 {
		out.OnFallback = func(ctx context.Context, e *domain.FallbackEvent) {
			for _, fn := range fallbacks {
				fn(ctx, e)
			}
		}
	}
	return out
}
