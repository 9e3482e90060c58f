package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// CeilingSlack is how long past the provider's hard ceiling a call may go
	// unreported before it is treated as finished.
	CeilingSlack    = 2 * time.Minute
	defaultInterval = 30 * time.Second
)

// ActiveCalls tracks live calls handled by this instance. Turns run under a
// per-call context so cancelling a session abandons its in-flight
// generation, and calls the provider never reported ending are expired once
// they pass their deadline.
type ActiveCalls struct {
	calls map[string]*ActiveCall
	mutex sync.RWMutex
	now   func() time.Time
}

type ActiveCall struct {
	SessionID  string
	StartedAt  time.Time
	Deadline   time.Time
	ctx        context.Context
	CancelFunc context.CancelFunc
}

func NewActiveCalls() *ActiveCalls {
	return &ActiveCalls{
		calls: make(map[string]*ActiveCall),
		now:   time.Now,
	}
}

// Register starts tracking a call. Registering an already tracked session
// only moves its deadline.
func (a *ActiveCalls) Register(sessionID string, startedAt time.Time, ceiling time.Duration) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	deadline := startedAt.Add(ceiling + CeilingSlack)
	if call, exists := a.calls[sessionID]; exists {
		call.Deadline = deadline
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.calls[sessionID] = &ActiveCall{
		SessionID:  sessionID,
		StartedAt:  startedAt,
		Deadline:   deadline,
		ctx:        ctx,
		CancelFunc: cancel,
	}

	slog.Info("Call registered for timeout tracking", "session_id", sessionID, "deadline", deadline)
}

// End cancels anything running for the call and stops tracking it.
func (a *ActiveCalls) End(sessionID string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if call, exists := a.calls[sessionID]; exists {
		call.CancelFunc()
		delete(a.calls, sessionID)
		slog.Info("Call removed from timeout tracking", "session_id", sessionID)
	}
}

// IsActive reports whether the call is tracked by this instance.
func (a *ActiveCalls) IsActive(sessionID string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	_, exists := a.calls[sessionID]
	return exists
}

// TurnContext derives a context from parent that is also cancelled when the
// call ends. Calls this instance does not track get a plain child of parent.
func (a *ActiveCalls) TurnContext(parent context.Context, sessionID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	a.mutex.RLock()
	call, exists := a.calls[sessionID]
	a.mutex.RUnlock()
	if !exists {
		return ctx, cancel
	}

	stop := context.AfterFunc(call.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Expired returns the sessions whose deadline has passed.
func (a *ActiveCalls) Expired() []string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	now := a.now()
	var expired []string
	for id, call := range a.calls {
		if now.After(call.Deadline) {
			expired = append(expired, id)
		}
	}
	return expired
}

// Run checks for expired calls every interval until ctx is done. onExpired
// is expected to finish the session, which in turn ends the call here.
func (a *ActiveCalls) Run(ctx context.Context, interval time.Duration, onExpired func(ctx context.Context, sessionID string)) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sessionID := range a.Expired() {
				slog.Warn("Call passed its hard ceiling without an end report", "session_id", sessionID)
				onExpired(ctx, sessionID)
				a.End(sessionID)
			}
		}
	}
}
