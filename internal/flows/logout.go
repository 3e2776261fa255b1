package flows

import (
	"context"
)

// LogoutMetrics carries metric IDs needed by the logout flow.
type LogoutMetrics struct {
	SessionDestroyed int
	LogoutFailure    int
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DestroySession func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)

	Metrics LogoutMetrics
	Event   string
	// InvalidationFailed wraps store errors so the host can classify them.
	InvalidationFailed error
	EngineNotReady     error
}

// RunLogout destroys sid. An empty or unknown sid is not an error.
func RunLogout(ctx context.Context, sid string, deps LogoutDeps) error {
	if deps.DestroySession == nil {
		return deps.EngineNotReady
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if sid == "" {
		return nil
	}

	if err := deps.DestroySession(ctx, sid); err != nil {
		if deps.InvalidationFailed != nil {
			err = &wrapped{outer: deps.InvalidationFailed, inner: err}
		}
		deps.MetricInc(deps.Metrics.LogoutFailure)
		deps.EmitAudit(ctx, deps.Event, false, "", sid, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.SessionDestroyed)
	deps.EmitAudit(ctx, deps.Event, true, "", sid, nil, nil)
	return nil
}

type wrapped struct {
	outer error
	inner error
}

func (w *wrapped) Error() string {
	return w.outer.Error() + ": " + w.inner.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.outer, w.inner}
}
