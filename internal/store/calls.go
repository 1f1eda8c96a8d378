package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
)

// CreateParams are the caller-supplied fields of a new scheduled call.
type CreateParams struct {
	UserID     int64
	Recurrence domain.Recurrence
	Time       string
	Message    string
	Weekday    string // weekly only
	Date       string // once only
}

// CreateCall validates the request, enforces the per-user capacity limit,
// assigns a fresh id and persists the record before returning it.
func (s *Store) CreateCall(p CreateParams) (domain.Call, error) {
	now := time.Now().UTC()
	call := domain.Call{
		ID:         newCallID(now),
		UserID:     p.UserID,
		Recurrence: p.Recurrence,
		Time:       strings.TrimSpace(p.Time),
		Message:    strings.TrimSpace(p.Message),
		Weekday:    strings.ToLower(strings.TrimSpace(p.Weekday)),
		Date:       strings.TrimSpace(p.Date),
		Active:     true,
		CreatedAt:  now,
	}
	if err := domain.ValidateCall(&call, s.cfg.Message); err != nil {
		return domain.Call{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owned := 0
	for _, c := range s.calls {
		if c.UserID == p.UserID {
			owned++
		}
	}
	if owned >= s.cfg.MaxCallsPerUser {
		return domain.Call{}, fmt.Errorf("%w: maximum %d per user", domain.ErrCapacity, s.cfg.MaxCallsPerUser)
	}

	s.calls[call.ID] = call
	if err := s.flushCalls(); err != nil {
		delete(s.calls, call.ID)
		return domain.Call{}, err
	}

	s.log.Info("scheduled call created",
		zap.String("callID", call.ID),
		zap.Int64("userID", call.UserID),
		zap.String("type", string(call.Recurrence)),
	)
	return call, nil
}

// newCallID builds a unique id: timestamp prefix for readability and stable
// ordering in dumps, random suffix for uniqueness.
func newCallID(now time.Time) string {
	return "call_" + now.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// GetCall returns a copy of the call or domain.ErrNotFound.
func (s *Store) GetCall(id string) (domain.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return domain.Call{}, domain.ErrNotFound
	}
	return c, nil
}

// ListUserCalls returns all of a user's calls in insertion order.
func (s *Store) ListUserCalls(userID int64) []domain.Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []domain.Call
	for _, c := range s.calls {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sortByCreation(res)
	return res
}

// ListActive returns every call that may still fire. The engine uses this on
// startup and for full resyncs.
func (s *Store) ListActive() []domain.Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []domain.Call
	for _, c := range s.calls {
		if c.Active {
			res = append(res, c)
		}
	}
	sortByCreation(res)
	return res
}

func sortByCreation(calls []domain.Call) {
	sort.Slice(calls, func(i, j int) bool {
		if !calls[i].CreatedAt.Equal(calls[j].CreatedAt) {
			return calls[i].CreatedAt.Before(calls[j].CreatedAt)
		}
		return calls[i].ID < calls[j].ID
	})
}

// CallUpdate is a partial update of a scheduled call; nil fields are left
// untouched.
type CallUpdate struct {
	Time    *string
	Message *string
	Weekday *string
	Date    *string
	Active  *bool
}

// UpdateCall applies a partial update, re-validates the resulting record and
// flushes it before returning.
func (s *Store) UpdateCall(id string, upd CallUpdate) (domain.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.calls[id]
	if !ok {
		return domain.Call{}, domain.ErrNotFound
	}

	next := prev
	if upd.Time != nil {
		next.Time = strings.TrimSpace(*upd.Time)
	}
	if upd.Message != nil {
		next.Message = strings.TrimSpace(*upd.Message)
	}
	if upd.Weekday != nil {
		next.Weekday = strings.ToLower(strings.TrimSpace(*upd.Weekday))
	}
	if upd.Date != nil {
		next.Date = strings.TrimSpace(*upd.Date)
	}
	if upd.Active != nil {
		next.Active = *upd.Active
	}
	if err := domain.ValidateCall(&next, s.cfg.Message); err != nil {
		return domain.Call{}, err
	}

	s.calls[id] = next
	if err := s.flushCalls(); err != nil {
		s.calls[id] = prev
		return domain.Call{}, err
	}
	return next, nil
}

// DeleteCall removes the record entirely.
func (s *Store) DeleteCall(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.calls[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.calls, id)
	if err := s.flushCalls(); err != nil {
		s.calls[id] = prev
		return err
	}
	s.log.Info("scheduled call deleted", zap.String("callID", id))
	return nil
}

// ToggleActive flips the active flag and returns the new value.
func (s *Store) ToggleActive(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.calls[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	next := prev
	next.Active = !prev.Active

	s.calls[id] = next
	if err := s.flushCalls(); err != nil {
		s.calls[id] = prev
		return false, err
	}
	return next.Active, nil
}

// SetActive forces the active flag. The engine uses it to retire elapsed or
// exhausted one-time calls.
func (s *Store) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.calls[id]
	if !ok {
		return domain.ErrNotFound
	}
	if prev.Active == active {
		return nil
	}
	next := prev
	next.Active = active

	s.calls[id] = next
	if err := s.flushCalls(); err != nil {
		s.calls[id] = prev
		return err
	}
	return nil
}

// MarkExecuted records a successful delivery: bumps the execution count, sets
// the last-executed timestamp, and deactivates one-time calls, all as one
// atomic update.
func (s *Store) MarkExecuted(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.calls[id]
	if !ok {
		return domain.ErrNotFound
	}
	next := prev
	at = at.UTC()
	next.LastExecuted = &at
	next.ExecutionCount++
	if next.Recurrence == domain.RecurOnce {
		next.Active = false
	}

	s.calls[id] = next
	if err := s.flushCalls(); err != nil {
		s.calls[id] = prev
		return err
	}
	s.log.Info("call marked executed",
		zap.String("callID", id),
		zap.Int("count", next.ExecutionCount),
	)
	return nil
}

// CleanupRetired deletes inactive one-time calls whose last execution is older
// than age, and returns how many were removed. Calls that never executed are
// kept; the owner may still want to see them in the list.
func (s *Store) CleanupRetired(age time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-age)
	var doomed []string
	for id, c := range s.calls {
		if c.Recurrence == domain.RecurOnce && !c.Active &&
			c.LastExecuted != nil && c.LastExecuted.Before(cutoff) {
			doomed = append(doomed, id)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	removed := make(map[string]domain.Call, len(doomed))
	for _, id := range doomed {
		removed[id] = s.calls[id]
		delete(s.calls, id)
	}
	if err := s.flushCalls(); err != nil {
		for id, c := range removed {
			s.calls[id] = c
		}
		return 0, err
	}
	s.log.Info("retired calls cleaned up", zap.Int("removed", len(doomed)))
	return len(doomed), nil
}
