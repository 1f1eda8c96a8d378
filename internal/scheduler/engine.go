// Package scheduler contains the trigger engine: it tracks, per scheduled
// call, when it should next fire, wakes on a polling interval, dispatches due
// calls to the delivery gateway and re-arms or retires them afterwards.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
	"github.com/haowern98/Telebot/internal/store"
)

// Deliverer places one voice call. The engine owns all retry policy; a
// Deliverer only reports whether this single attempt succeeded.
type Deliverer interface {
	Deliver(ctx context.Context, contact, message string, s domain.Settings) error
}

// Config carries the engine's timing and retry knobs.
type Config struct {
	CheckInterval    time.Duration // polling granularity, capped at one minute
	DeliveryTimeout  time.Duration // bound on a single delivery attempt
	MaxRetries       int           // retries after the first failed attempt
	RetryBackoffBase time.Duration // first retry delay, doubled per retry
	FallbackTZ       string        // used when a user's zone fails to load
	RetentionAge     time.Duration // retired one-time calls older than this are purged
}

type callState int

const (
	stateArmed callState = iota
	stateFiring
)

type trackedCall struct {
	state  callState
	fireAt time.Time
}

// Engine is the single scheduling worker. It is constructed once at process
// start; Run blocks until the context is cancelled.
type Engine struct {
	store   *store.Store
	gateway Deliverer
	log     *zap.Logger
	cfg     Config

	mu      sync.Mutex
	tracked map[string]*trackedCall

	wg          sync.WaitGroup
	lastCleanup time.Time

	now func() time.Time // injectable for tests
}

func New(st *store.Store, gw Deliverer, log *zap.Logger, cfg Config) *Engine {
	if cfg.CheckInterval <= 0 || cfg.CheckInterval > time.Minute {
		cfg.CheckInterval = 30 * time.Second
	}
	return &Engine{
		store:   st,
		gateway: gw,
		log:     log,
		cfg:     cfg,
		tracked: make(map[string]*trackedCall),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run arms everything the store knows about, then polls until ctx is canceled.
// In-flight deliveries are allowed to finish before Run returns.
func (e *Engine) Run(ctx context.Context) {
	e.resync()

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopping, waiting for in-flight deliveries")
			e.wg.Wait()
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// resync rebuilds the tracked table from the store's active set. Elapsed
// one-time calls are retired without firing; missed occurrences of recurring
// calls advance to their next future instant. There is no catch-up queue.
func (e *Engine) resync() {
	now := e.now()
	calls := e.store.ListActive()
	for i := range calls {
		e.armOrRetire(&calls[i], now)
	}

	e.mu.Lock()
	armed := len(e.tracked)
	e.mu.Unlock()
	e.log.Info("engine synced", zap.Int("loaded", len(calls)), zap.Int("armed", armed))
}

// armOrRetire resyncs the tracking for a single call. A call that is mid-fire
// is left alone; the finish path recomputes its state. The firing check and
// the table write happen under one lock so a concurrent tick cannot move the
// call to firing in between and have that state overwritten.
func (e *Engine) armOrRetire(c *domain.Call, now time.Time) {
	var (
		at time.Time
		ok bool
	)
	if c.Active {
		at, ok = domain.NextFire(c, e.locationFor(c.UserID), now)
	}

	e.mu.Lock()
	if tc, tracked := e.tracked[c.ID]; tracked && tc.state == stateFiring {
		e.mu.Unlock()
		return
	}
	if c.Active && ok {
		e.tracked[c.ID] = &trackedCall{state: stateArmed, fireAt: at}
		e.mu.Unlock()
		return
	}
	delete(e.tracked, c.ID)
	e.mu.Unlock()

	if !c.Active {
		return
	}
	if c.Recurrence == domain.RecurOnce {
		// Elapsed while we were not looking: retire silently, never
		// retroactively fire.
		if err := e.store.SetActive(c.ID, false); err != nil {
			e.log.Error("retire elapsed call failed", zap.String("callID", c.ID), zap.Error(err))
			return
		}
		e.log.Info("elapsed one-time call retired", zap.String("callID", c.ID))
	} else {
		e.log.Error("call is not schedulable", zap.String("callID", c.ID))
	}
}

// locationFor resolves the owner's timezone, degrading to the fallback zone
// with a logged warning rather than failing.
func (e *Engine) locationFor(userID int64) *time.Location {
	tz := e.cfg.FallbackTZ
	if s, err := e.store.GetSettings(userID); err == nil {
		tz = s.Timezone
	}
	loc, degraded := domain.LoadLocation(tz, e.cfg.FallbackTZ)
	if degraded {
		e.log.Warn("unknown timezone, using fallback",
			zap.Int64("userID", userID),
			zap.String("tz", tz),
			zap.String("fallback", loc.String()),
		)
	}
	return loc
}

func (e *Engine) untrack(id string) {
	e.mu.Lock()
	delete(e.tracked, id)
	e.mu.Unlock()
}

// AddCall arms a freshly created call. The front-end calls this after the
// store mutation; other tracked calls are untouched.
func (e *Engine) AddCall(id string) {
	c, err := e.store.GetCall(id)
	if err != nil {
		e.untrack(id)
		return
	}
	e.armOrRetire(&c, e.now())
}

// RemoveCall drops a call from tracking, preventing any future fire. An
// in-flight delivery is not interrupted, but its finish path will not re-arm.
func (e *Engine) RemoveCall(id string) {
	e.untrack(id)
}

// UpdateCall resyncs one call after an external mutation (toggle, edit,
// timezone change).
func (e *Engine) UpdateCall(id string) {
	e.AddCall(id)
}

// NextFireTime reports the armed instant for a call, if it is armed.
func (e *Engine) NextFireTime(id string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tc, ok := e.tracked[id]
	if !ok || tc.state != stateArmed {
		return time.Time{}, false
	}
	return tc.fireAt, true
}

// tick runs one scheduling cycle: collect due armed calls, fire each on its
// own goroutine, and occasionally run retention cleanup.
func (e *Engine) tick(ctx context.Context) {
	now := e.now()

	var due []string
	e.mu.Lock()
	for id, tc := range e.tracked {
		if tc.state == stateArmed && !tc.fireAt.After(now) {
			tc.state = stateFiring
			due = append(due, id)
		}
	}
	e.mu.Unlock()

	for _, id := range due {
		e.wg.Add(1)
		go func(id string) {
			defer e.wg.Done()
			e.fire(ctx, id)
		}(id)
	}

	if e.cfg.RetentionAge > 0 && now.Sub(e.lastCleanup) >= 24*time.Hour {
		e.lastCleanup = now
		if _, err := e.store.CleanupRetired(e.cfg.RetentionAge, now); err != nil {
			e.log.Error("retention cleanup failed", zap.Error(err))
		}
	}
}

// fire delivers one due call. A delivery failure never propagates out of here;
// the loop must keep running whatever the gateway does.
func (e *Engine) fire(ctx context.Context, id string) {
	c, err := e.store.GetCall(id)
	if err != nil {
		e.untrack(id)
		return
	}
	// The record may have been deactivated since it was armed.
	if !c.Active {
		e.untrack(id)
		e.log.Info("call deactivated before firing, skipped", zap.String("callID", id))
		return
	}

	settings, err := e.store.GetSettings(c.UserID)
	if err != nil {
		e.log.Error("read settings failed", zap.String("callID", id), zap.Error(err))
		e.finish(&c, false)
		return
	}
	contact := settings.Contact()
	if contact == "" {
		e.log.Warn("no contact configured, cannot deliver",
			zap.String("callID", id),
			zap.Int64("userID", c.UserID),
		)
		e.finish(&c, false)
		return
	}

	e.log.Info("firing call", zap.String("callID", id), zap.String("type", string(c.Recurrence)))
	err = e.deliverWithRetry(ctx, id, contact, c.Message, settings)
	e.finish(&c, err == nil)
}

// deliverWithRetry runs the bounded retry sequence: one initial attempt plus
// up to MaxRetries retries, each attempt bounded by the delivery timeout, with
// exponential backoff between attempts.
func (e *Engine) deliverWithRetry(ctx context.Context, id, contact, message string, s domain.Settings) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryBackoffBase
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 24 * time.Hour
	bo.MaxElapsedTime = 0
	// Reset latches InitialInterval as the current interval; without it the
	// first NextBackOff would still return the constructor's default.
	bo.Reset()

	attempts := e.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
		err := e.gateway.Deliver(actx, contact, message, s)
		cancel()
		if err == nil {
			if attempt > 1 {
				e.log.Info("delivery succeeded after retry",
					zap.String("callID", id), zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err
		e.log.Warn("delivery attempt failed",
			zap.String("callID", id),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", attempts),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
	return lastErr
}

// finish applies a delivery outcome: records execution on success, then
// re-arms recurring calls for their next natural occurrence and retires
// one-time calls either way. A deactivation that happened mid-delivery is
// honored here; the record is re-read and an inactive one never re-arms.
func (e *Engine) finish(c *domain.Call, success bool) {
	id := c.ID
	now := e.now()
	e.untrack(id)

	if success {
		if err := e.store.MarkExecuted(id, now); err != nil {
			e.log.Error("mark executed failed", zap.String("callID", id), zap.Error(err))
		}
	} else if c.Recurrence == domain.RecurOnce {
		// Exhausted retries: retire without counting an execution.
		if err := e.store.SetActive(id, false); err != nil {
			e.log.Error("retire failed call failed", zap.String("callID", id), zap.Error(err))
		}
		e.log.Warn("one-time call failed and was retired", zap.String("callID", id))
		return
	} else {
		e.log.Warn("delivery failed, re-arming next occurrence", zap.String("callID", id))
	}

	cur, err := e.store.GetCall(id)
	if err != nil {
		return // deleted mid-delivery
	}
	if !cur.Active {
		return // retired (one-time) or deactivated mid-delivery
	}
	e.armOrRetire(&cur, now)
}

// Stats is the engine's contribution to the ops surface.
type Stats struct {
	Tracked int `json:"tracked"`
	Armed   int `json:"armed"`
	Firing  int `json:"firing"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Stats{Tracked: len(e.tracked)}
	for _, tc := range e.tracked {
		if tc.state == stateArmed {
			st.Armed++
		} else {
			st.Firing++
		}
	}
	return st
}
