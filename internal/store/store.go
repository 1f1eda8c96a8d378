package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
)

const (
	callsFile    = "scheduled_calls.json"
	settingsFile = "user_settings.json"
)

// Config carries the store's validation limits and the defaults applied to
// newly seen users.
type Config struct {
	Dir             string
	MaxCallsPerUser int
	Message         domain.MessageBounds

	DefaultLanguage     string
	DefaultRepeat       int
	DefaultTimeout      int
	DefaultSendTextCopy bool
	DefaultTimezone     string
}

// Store is the durable owner of scheduled calls and user settings. State lives
// in two flat JSON documents; every mutation happens under one lock as a full
// read-modify-write-flush cycle, and each flush replaces the whole document via
// a temp file and rename so a crash can never leave a partial write behind.
type Store struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	callsPath    string
	settingsPath string

	calls map[string]domain.Call
	users map[int64]domain.Settings
}

// Open loads (or initializes) the data directory and returns a ready store.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		cfg:          cfg,
		log:          log,
		callsPath:    filepath.Join(cfg.Dir, callsFile),
		settingsPath: filepath.Join(cfg.Dir, settingsFile),
		calls:        make(map[string]domain.Call),
		users:        make(map[int64]domain.Settings),
	}

	if err := loadJSON(s.callsPath, &s.calls); err != nil {
		return nil, fmt.Errorf("load scheduled calls: %w", err)
	}
	if err := loadJSON(s.settingsPath, &s.users); err != nil {
		return nil, fmt.Errorf("load user settings: %w", err)
	}

	log.Info("store ready",
		zap.String("dir", cfg.Dir),
		zap.Int("calls", len(s.calls)),
		zap.Int("users", len(s.users)),
	)
	return s, nil
}

// loadJSON reads a whole document into dst. A missing file is not an error;
// the store starts empty and creates it on first flush.
func loadJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// flushJSON serializes src and atomically replaces the document at path.
func flushJSON(path string, src any) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", domain.ErrPersist, filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersist, filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", domain.ErrPersist, filepath.Base(path), err)
	}
	return nil
}

// flushCalls must be called with s.mu held.
func (s *Store) flushCalls() error { return flushJSON(s.callsPath, s.calls) }

// flushSettings must be called with s.mu held.
func (s *Store) flushSettings() error { return flushJSON(s.settingsPath, s.users) }

// Stats is the ops-surface summary of what the store holds.
type Stats struct {
	TotalCalls    int            `json:"total_calls"`
	ActiveCalls   int            `json:"active_calls"`
	InactiveCalls int            `json:"inactive_calls"`
	TotalUsers    int            `json:"total_users"`
	CallsByType   map[string]int `json:"calls_by_type"`
}

// Stats returns counters for the /stats endpoint.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalCalls:  len(s.calls),
		TotalUsers:  len(s.users),
		CallsByType: map[string]int{},
	}
	for _, c := range s.calls {
		if c.Active {
			st.ActiveCalls++
		}
		st.CallsByType[string(c.Recurrence)]++
	}
	st.InactiveCalls = st.TotalCalls - st.ActiveCalls
	return st
}
