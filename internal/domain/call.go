package domain

import "time"

// Recurrence is the repetition pattern of a scheduled call.
type Recurrence string

const (
	RecurOnce   Recurrence = "once"
	RecurDaily  Recurrence = "daily"
	RecurWeekly Recurrence = "weekly"
)

// Call is one user's request to be called: what to say, when, and how often.
// JSON field names are stable; they are shared with existing data files.
type Call struct {
	ID             string     `json:"call_id"`
	UserID         int64      `json:"user_id"`
	Recurrence     Recurrence `json:"type"`
	Time           string     `json:"time"`              // HH:MM, owner-local wall clock
	Message        string     `json:"message"`           // spoken during the call
	Weekday        string     `json:"weekday,omitempty"` // weekly calls only
	Date           string     `json:"date,omitempty"`    // once calls only, YYYY-MM-DD
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastExecuted   *time.Time `json:"last_executed,omitempty"`
	ExecutionCount int        `json:"execution_count"`
}

// Settings holds per-user delivery preferences.
type Settings struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"` // @name form
	Phone        string    `json:"phone,omitempty"`    // +digits form
	Language     string    `json:"language"`           // TTS voice
	Repeat       int       `json:"repeat"`             // times the message is repeated
	Timeout      int       `json:"timeout"`            // ring timeout, seconds
	SendTextCopy bool      `json:"send_text_copy"`
	Timezone     string    `json:"timezone"` // IANA zone name
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Contact returns the configured contact, preferring the username form.
// Empty string means the user has not set one yet.
func (s *Settings) Contact() string {
	if s.Username != "" {
		return s.Username
	}
	return s.Phone
}
