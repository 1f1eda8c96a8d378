package store

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
)

// EnsureUser returns the user's settings, creating them with defaults on the
// first interaction from a new owner. Settings are never deleted.
func (s *Store) EnsureUser(userID int64) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureUserLocked(userID)
}

func (s *Store) ensureUserLocked(userID int64) (domain.Settings, error) {
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	now := time.Now().UTC()
	u := domain.Settings{
		UserID:       userID,
		Language:     s.cfg.DefaultLanguage,
		Repeat:       s.cfg.DefaultRepeat,
		Timeout:      s.cfg.DefaultTimeout,
		SendTextCopy: s.cfg.DefaultSendTextCopy,
		Timezone:     s.cfg.DefaultTimezone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[userID] = u
	if err := s.flushSettings(); err != nil {
		delete(s.users, userID)
		return domain.Settings{}, err
	}
	s.log.Info("new user initialized", zap.Int64("userID", userID))
	return u, nil
}

// GetSettings is EnsureUser under its read-path name.
func (s *Store) GetSettings(userID int64) (domain.Settings, error) {
	return s.EnsureUser(userID)
}

// SettingsUpdate is a partial update of user settings; nil fields are left
// untouched. Setting Username clears Phone and vice versa, so exactly one
// contact form stays canonical.
type SettingsUpdate struct {
	Username     *string
	Phone        *string
	Language     *string
	Repeat       *int
	Timeout      *int
	SendTextCopy *bool
	Timezone     *string
}

// UpdateSettings applies a partial update, bumps updated_at and flushes before
// returning the new state. Timezone values are validated; contact syntax is
// the delivery gateway's concern and is checked by the front-end before it
// calls here.
func (s *Store) UpdateSettings(userID int64, upd SettingsUpdate) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.ensureUserLocked(userID)
	if err != nil {
		return domain.Settings{}, err
	}

	next := prev
	if upd.Username != nil {
		next.Username = strings.TrimSpace(*upd.Username)
		next.Phone = ""
	}
	if upd.Phone != nil {
		next.Phone = strings.TrimSpace(*upd.Phone)
		next.Username = ""
	}
	if upd.Language != nil {
		next.Language = strings.TrimSpace(*upd.Language)
	}
	if upd.Repeat != nil {
		next.Repeat = *upd.Repeat
	}
	if upd.Timeout != nil {
		next.Timeout = *upd.Timeout
	}
	if upd.SendTextCopy != nil {
		next.SendTextCopy = *upd.SendTextCopy
	}
	if upd.Timezone != nil {
		tz, err := domain.ValidateTZ(*upd.Timezone)
		if err != nil {
			return domain.Settings{}, err
		}
		next.Timezone = tz
	}
	next.UpdatedAt = time.Now().UTC()

	s.users[userID] = next
	if err := s.flushSettings(); err != nil {
		s.users[userID] = prev
		return domain.Settings{}, err
	}
	return next, nil
}
