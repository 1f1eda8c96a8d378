package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
)

func testConfig(dir string) Config {
	return Config{
		Dir:                 dir,
		MaxCallsPerUser:     3,
		Message:             domain.MessageBounds{Min: 5, Max: 256},
		DefaultLanguage:     "en-US-Standard-B",
		DefaultRepeat:       2,
		DefaultTimeout:      30,
		DefaultSendTextCopy: true,
		DefaultTimezone:     "UTC",
	}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(testConfig(dir), zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func dailyParams(userID int64) CreateParams {
	return CreateParams{
		UserID:     userID,
		Recurrence: domain.RecurDaily,
		Time:       "09:00",
		Message:    "wake up now",
	}
}

func TestCreateAndGetCall(t *testing.T) {
	s, _ := openTestStore(t)

	c, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.True(t, c.Active)
	require.Equal(t, 0, c.ExecutionCount)

	got, err := s.GetCall(c.ID)
	require.NoError(t, err)
	require.Equal(t, c, got)

	_, err = s.GetCall("call_nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateCallValidation(t *testing.T) {
	s, _ := openTestStore(t)

	cases := []CreateParams{
		{UserID: 1, Recurrence: "hourly", Time: "09:00", Message: "hello there"},
		{UserID: 1, Recurrence: domain.RecurDaily, Time: "9am", Message: "hello there"},
		{UserID: 1, Recurrence: domain.RecurDaily, Time: "09:00", Message: "hi"},
		{UserID: 1, Recurrence: domain.RecurWeekly, Time: "09:00", Message: "hello there"},
		{UserID: 1, Recurrence: domain.RecurWeekly, Time: "09:00", Message: "hello there", Weekday: "noday"},
		{UserID: 1, Recurrence: domain.RecurOnce, Time: "09:00", Message: "hello there"},
		{UserID: 1, Recurrence: domain.RecurOnce, Time: "09:00", Message: "hello there", Date: "01/02/2025"},
	}
	for i, p := range cases {
		_, err := s.CreateCall(p)
		require.Truef(t, domain.IsValidation(err), "case %d: want validation error, got %v", i, err)
	}
	require.Empty(t, s.ListUserCalls(1), "rejected creates must not mutate the store")
}

func TestCreateCallCapacity(t *testing.T) {
	s, _ := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.CreateCall(dailyParams(7))
		require.NoError(t, err)
	}
	// Inactive records still count against the limit.
	calls := s.ListUserCalls(7)
	_, err := s.ToggleActive(calls[0].ID)
	require.NoError(t, err)

	_, err = s.CreateCall(dailyParams(7))
	require.ErrorIs(t, err, domain.ErrCapacity)
	require.Len(t, s.ListUserCalls(7), 3)

	// Other owners are unaffected.
	_, err = s.CreateCall(dailyParams(8))
	require.NoError(t, err)
}

func TestListUserCallsInsertionOrder(t *testing.T) {
	s, _ := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		c, err := s.CreateCall(dailyParams(1))
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	got := s.ListUserCalls(1)
	require.Len(t, got, 3)
	for i, c := range got {
		require.Equal(t, ids[i], c.ID)
	}
}

func TestToggleAndListActive(t *testing.T) {
	s, _ := openTestStore(t)

	c, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)

	active, err := s.ToggleActive(c.ID)
	require.NoError(t, err)
	require.False(t, active)
	require.Empty(t, s.ListActive())

	active, err = s.ToggleActive(c.ID)
	require.NoError(t, err)
	require.True(t, active)
	require.Len(t, s.ListActive(), 1)

	_, err = s.ToggleActive("call_nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateCallPartial(t *testing.T) {
	s, _ := openTestStore(t)

	c, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)

	newTime := "18:45"
	got, err := s.UpdateCall(c.ID, CallUpdate{Time: &newTime})
	require.NoError(t, err)
	require.Equal(t, "18:45", got.Time)
	require.Equal(t, c.Message, got.Message)

	badTime := "25:00"
	_, err = s.UpdateCall(c.ID, CallUpdate{Time: &badTime})
	require.True(t, domain.IsValidation(err))

	// Failed update left the record as it was.
	got, err = s.GetCall(c.ID)
	require.NoError(t, err)
	require.Equal(t, "18:45", got.Time)
}

func TestMarkExecuted(t *testing.T) {
	s, _ := openTestStore(t)

	daily, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)
	once, err := s.CreateCall(CreateParams{
		UserID: 1, Recurrence: domain.RecurOnce, Time: "10:00",
		Message: "one time thing", Date: "2030-01-01",
	})
	require.NoError(t, err)

	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkExecuted(daily.ID, at))
	got, err := s.GetCall(daily.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ExecutionCount)
	require.NotNil(t, got.LastExecuted)
	require.True(t, got.LastExecuted.Equal(at))
	require.True(t, got.Active, "recurring calls stay active after execution")

	require.NoError(t, s.MarkExecuted(once.ID, at))
	got, err = s.GetCall(once.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ExecutionCount)
	require.False(t, got.Active, "one-time calls deactivate on execution")
}

func TestDeleteCall(t *testing.T) {
	s, _ := openTestStore(t)

	c, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)
	require.NoError(t, s.DeleteCall(c.ID))
	_, err = s.GetCall(c.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, s.DeleteCall(c.ID), domain.ErrNotFound)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	s, dir := openTestStore(t)

	c, err := s.CreateCall(dailyParams(42))
	require.NoError(t, err)
	_, err = s.UpdateSettings(42, SettingsUpdate{Timezone: strptr("Asia/Singapore")})
	require.NoError(t, err)

	reopened, err := Open(testConfig(dir), zap.NewNop())
	require.NoError(t, err)

	got, err := reopened.GetCall(c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
	require.Equal(t, c.Message, got.Message)
	require.True(t, got.CreatedAt.Equal(c.CreatedAt))

	settings, err := reopened.GetSettings(42)
	require.NoError(t, err)
	require.Equal(t, "Asia/Singapore", settings.Timezone)

	// A flush never leaves its temp file behind.
	_, err = os.Stat(filepath.Join(dir, callsFile+".tmp"))
	require.True(t, os.IsNotExist(err))
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	s, _ := openTestStore(t)

	u, err := s.GetSettings(5)
	require.NoError(t, err)
	require.Equal(t, "en-US-Standard-B", u.Language)
	require.Equal(t, 2, u.Repeat)
	require.Equal(t, 30, u.Timeout)
	require.True(t, u.SendTextCopy)
	require.Equal(t, "UTC", u.Timezone)
	require.Empty(t, u.Contact())

	u, err = s.UpdateSettings(5, SettingsUpdate{Username: strptr("@alice")})
	require.NoError(t, err)
	require.Equal(t, "@alice", u.Contact())

	// Switching to a phone clears the username: one canonical contact form.
	u, err = s.UpdateSettings(5, SettingsUpdate{Phone: strptr("+6591234567")})
	require.NoError(t, err)
	require.Equal(t, "+6591234567", u.Contact())
	require.Empty(t, u.Username)

	_, err = s.UpdateSettings(5, SettingsUpdate{Timezone: strptr("Nowhere/Town")})
	require.True(t, domain.IsValidation(err))
}

func TestCleanupRetired(t *testing.T) {
	s, _ := openTestStore(t)

	old, err := s.CreateCall(CreateParams{
		UserID: 1, Recurrence: domain.RecurOnce, Time: "10:00",
		Message: "old one-timer", Date: "2030-01-01",
	})
	require.NoError(t, err)
	fresh, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.MarkExecuted(old.ID, now.Add(-40*24*time.Hour)))

	removed, err := s.CleanupRetired(30*24*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = s.GetCall(old.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetCall(fresh.ID)
	require.NoError(t, err)
}

func strptr(s string) *string { return &s }

func TestFlushFailureRollsBackMemory(t *testing.T) {
	s, _ := openTestStore(t)

	c, err := s.CreateCall(dailyParams(1))
	require.NoError(t, err)

	// Replace the calls document with a directory so the atomic rename in
	// every following flush fails.
	require.NoError(t, os.Remove(s.callsPath))
	require.NoError(t, os.Mkdir(s.callsPath, 0o755))

	_, err = s.CreateCall(dailyParams(2))
	require.ErrorIs(t, err, domain.ErrPersist)
	require.Empty(t, s.ListUserCalls(2), "failed create must not leave the record cached")

	_, err = s.UpdateCall(c.ID, CallUpdate{Message: strptr("changed message text")})
	require.ErrorIs(t, err, domain.ErrPersist)
	got, err := s.GetCall(c.ID)
	require.NoError(t, err)
	require.Equal(t, "wake up now", got.Message, "failed update must keep the old record")

	require.ErrorIs(t, s.DeleteCall(c.ID), domain.ErrPersist)
	_, err = s.GetCall(c.ID)
	require.NoError(t, err, "failed delete must keep the record")

	// Once the path is repaired the store flushes cleanly again.
	require.NoError(t, os.Remove(s.callsPath))
	c2, err := s.CreateCall(dailyParams(2))
	require.NoError(t, err)
	_, err = s.GetCall(c2.ID)
	require.NoError(t, err)
}
