package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/callmebot"
	"github.com/haowern98/Telebot/internal/domain"
	"github.com/haowern98/Telebot/internal/store"
)

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	if _, err := r.store.EnsureUser(chatID); err != nil {
		r.log.Error("ensure user failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	r.sendWithKeyboard(chatID, welcomeText, startKeyboard())
}

func (r *Router) handleSchedule(ctx context.Context, chatID int64) {
	if _, err := r.store.EnsureUser(chatID); err != nil {
		r.log.Error("ensure user failed", zap.Error(err))
		r.sendText(chatID, somethingWrong)
		return
	}
	r.sendWithKeyboard(chatID, "📞 What type of call would you like to schedule?", scheduleTypeKeyboard())
}

func (r *Router) handleScheduleType(ctx context.Context, chatID int64, kind string) {
	d := &draft{recurrence: domain.Recurrence(kind)}
	switch d.recurrence {
	case domain.RecurDaily:
		d.step = stepTime
		r.setDraft(chatID, d)
		r.sendText(chatID, "⏰ What time should I call every day? Use 24-hour HH:MM, e.g. 09:30.")
	case domain.RecurWeekly:
		r.setDraft(chatID, d)
		r.sendWithKeyboard(chatID, "📅 Which day of the week?", weekdayKeyboard())
	case domain.RecurOnce:
		d.step = stepDate
		r.setDraft(chatID, d)
		r.sendText(chatID, "📅 What date? Use YYYY-MM-DD, e.g. 2025-07-14.")
	default:
		r.sendText(chatID, somethingWrong)
	}
}

func (r *Router) handleWeekdayChoice(ctx context.Context, chatID int64, weekday string) {
	d := r.getDraft(chatID)
	if d == nil || d.recurrence != domain.RecurWeekly {
		r.sendText(chatID, "Start with /schedule first.")
		return
	}
	if _, err := domain.ParseWeekday(weekday); err != nil {
		r.sendText(chatID, err.Error())
		return
	}
	d.weekday = weekday
	d.step = stepTime
	r.setDraft(chatID, d)
	r.sendText(chatID, "⏰ What time on "+title(weekday)+"? Use 24-hour HH:MM, e.g. 14:00.")
}

// handleFreeForm dispatches non-command text into whatever flow the chat has
// pending. Without a pending flow the text is ignored.
func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	d := r.getDraft(chatID)
	if d == nil {
		return
	}

	switch d.step {
	case stepDate:
		if _, _, _, err := domain.ParseDate(text); err != nil {
			r.sendText(chatID, "❌ Invalid date. Use YYYY-MM-DD, e.g. 2025-07-14.")
			return
		}
		d.date = text
		d.step = stepTime
		r.setDraft(chatID, d)
		r.sendText(chatID, "⏰ What time on that date? Use 24-hour HH:MM, e.g. 18:30.")

	case stepTime:
		if _, _, err := domain.ParseClock(text); err != nil {
			r.sendText(chatID, "❌ Invalid time. Use 24-hour HH:MM, e.g. 09:30.")
			return
		}
		d.timeOfDay = text
		d.step = stepMessage
		r.setDraft(chatID, d)
		r.sendText(chatID, "📝 What should I say during the call? (It is converted to speech.)")

	case stepMessage:
		r.clearDraft(chatID)
		r.createCall(ctx, chatID, d, text)

	case stepTestMessage:
		r.clearDraft(chatID)
		r.placeTestCall(ctx, chatID, text)

	case stepUsername:
		r.clearDraft(chatID)
		r.saveContact(ctx, chatID, text, store.SettingsUpdate{Username: &text})

	case stepPhone:
		r.clearDraft(chatID)
		r.saveContact(ctx, chatID, text, store.SettingsUpdate{Phone: &text})

	case stepTimezone:
		r.clearDraft(chatID)
		r.saveTimezone(ctx, chatID, text)

	case stepRepeat:
		r.clearDraft(chatID)
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || n < 1 || n > 10 {
			r.sendText(chatID, "❌ Repeat must be a number between 1 and 10.")
			return
		}
		if _, err := r.store.UpdateSettings(chatID, store.SettingsUpdate{Repeat: &n}); err != nil {
			r.surfaceErr(chatID, err)
			return
		}
		r.sendText(chatID, fmt.Sprintf("✅ The message will be repeated %d time(s).", n))
	}
}

func (r *Router) createCall(ctx context.Context, chatID int64, d *draft, message string) {
	call, err := r.store.CreateCall(store.CreateParams{
		UserID:     chatID,
		Recurrence: d.recurrence,
		Time:       d.timeOfDay,
		Message:    message,
		Weekday:    d.weekday,
		Date:       d.date,
	})
	if err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	r.engine.AddCall(call.ID)

	settings, _ := r.store.GetSettings(chatID)
	reply := "✅ Call scheduled!\n\n" + describeCall(&call)
	if next, ok := r.engine.NextFireTime(call.ID); ok {
		reply += "\n🔔 Next call: " + domain.LocalizeTime(next, settings.Timezone)
	}
	if settings.Contact() == "" {
		reply += "\n\n⚠️ You have no username or phone configured yet, use /settings."
	}
	r.sendText(chatID, reply)
}

func (r *Router) handleList(ctx context.Context, chatID int64) {
	calls := r.store.ListUserCalls(chatID)
	if len(calls) == 0 {
		r.sendText(chatID, "📭 You have no scheduled calls. Use /schedule to create one.")
		return
	}
	settings, _ := r.store.GetSettings(chatID)

	var b strings.Builder
	b.WriteString("📋 Your scheduled calls:\n\n")
	for i := range calls {
		c := &calls[i]
		status := "✅"
		if !c.Active {
			status = "⏸"
		}
		fmt.Fprintf(&b, "%s %s\n", status, describeCall(c))
		if next, ok := r.engine.NextFireTime(c.ID); ok {
			fmt.Fprintf(&b, "   🔔 next: %s\n", domain.LocalizeTime(next, settings.Timezone))
		}
		if c.ExecutionCount > 0 {
			fmt.Fprintf(&b, "   📈 delivered %d time(s)\n", c.ExecutionCount)
		}
		b.WriteString("\n")
	}
	r.sendWithKeyboard(chatID, b.String(), listMenuKeyboard())
}

// --- Delete / toggle menus ---

func (r *Router) showDeleteMenu(ctx context.Context, chatID int64) {
	calls := r.store.ListUserCalls(chatID)
	if len(calls) == 0 {
		r.sendText(chatID, "📭 Nothing to delete.")
		return
	}
	r.sendWithKeyboard(chatID, "🗑 Which call should I delete?", callsKeyboard(calls, "del"))
}

func (r *Router) showToggleMenu(ctx context.Context, chatID int64) {
	calls := r.store.ListUserCalls(chatID)
	if len(calls) == 0 {
		r.sendText(chatID, "📭 Nothing to pause or resume.")
		return
	}
	r.sendWithKeyboard(chatID, "⏸ Which call should I pause or resume?", callsKeyboard(calls, "toggle"))
}

func (r *Router) handleDelete(ctx context.Context, chatID int64, id string) {
	if !r.ownsCall(chatID, id) {
		r.sendText(chatID, notFoundMsg)
		return
	}
	if err := r.store.DeleteCall(id); err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	r.engine.RemoveCall(id)
	r.sendText(chatID, "✅ Call deleted.")
}

func (r *Router) handleToggle(ctx context.Context, chatID int64, id string) {
	if !r.ownsCall(chatID, id) {
		r.sendText(chatID, notFoundMsg)
		return
	}
	active, err := r.store.ToggleActive(id)
	if err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	r.engine.UpdateCall(id)
	if active {
		r.sendText(chatID, "▶️ Call resumed.")
	} else {
		r.sendText(chatID, "⏸ Call paused.")
	}
}

// ownsCall keeps users from acting on other users' call ids.
func (r *Router) ownsCall(chatID int64, id string) bool {
	c, err := r.store.GetCall(id)
	return err == nil && c.UserID == chatID
}

// --- Test call ---

func (r *Router) handleTest(ctx context.Context, chatID int64) {
	settings, err := r.store.GetSettings(chatID)
	if err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	if settings.Contact() == "" {
		r.sendText(chatID, "❌ Configure your username or phone number first, use /settings.")
		return
	}
	r.setDraft(chatID, &draft{step: stepTestMessage})
	r.sendText(chatID, "🧪 What should I say during the test call?")
}

func (r *Router) placeTestCall(ctx context.Context, chatID int64, message string) {
	settings, err := r.store.GetSettings(chatID)
	if err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	cctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := r.caller.Deliver(cctx, settings.Contact(), message, settings); err != nil {
		r.log.Warn("test call failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "❌ Test call failed. Check your CallMeBot authorization (/setup) and contact details.")
		return
	}
	r.sendText(chatID, "✅ Test call initiated! Check your phone.")
}

// --- Settings ---

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	settings, err := r.store.GetSettings(chatID)
	if err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	r.sendWithKeyboard(chatID, describeSettings(&settings), settingsKeyboard())
}

func (r *Router) handleSettingsChoice(ctx context.Context, chatID int64, field string) {
	switch field {
	case "username":
		r.setDraft(chatID, &draft{step: stepUsername})
		r.sendText(chatID, "👤 Enter your Telegram username, e.g. @yourname.")
	case "phone":
		r.setDraft(chatID, &draft{step: stepPhone})
		r.sendText(chatID, "📱 Enter your phone number with country code, e.g. +6591234567.")
	case "language":
		r.sendWithKeyboard(chatID, "🗣 Pick a language for text-to-speech:", languageKeyboard())
	case "repeat":
		r.setDraft(chatID, &draft{step: stepRepeat})
		r.sendText(chatID, "🔁 How many times should the message be repeated? (1-10)")
	case "cc":
		settings, err := r.store.GetSettings(chatID)
		if err != nil {
			r.surfaceErr(chatID, err)
			return
		}
		next := !settings.SendTextCopy
		if _, err := r.store.UpdateSettings(chatID, store.SettingsUpdate{SendTextCopy: &next}); err != nil {
			r.surfaceErr(chatID, err)
			return
		}
		if next {
			r.sendText(chatID, "✅ A text copy will be sent with each call.")
		} else {
			r.sendText(chatID, "✅ Calls only, no text copy.")
		}
	default:
		r.sendText(chatID, somethingWrong)
	}
}

func (r *Router) saveContact(ctx context.Context, chatID int64, raw string, upd store.SettingsUpdate) {
	target := callmebot.NormalizeContact(raw)
	if ok, reason := callmebot.ValidateContact(target); !ok {
		r.sendText(chatID, "❌ "+reason)
		return
	}
	if upd.Username != nil {
		upd.Username = &target
	}
	if upd.Phone != nil {
		upd.Phone = &target
	}
	if _, err := r.store.UpdateSettings(chatID, upd); err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	r.sendText(chatID, "✅ Contact saved: "+target+"\nUse /test to verify CallMeBot can reach you.")
}

func (r *Router) handleLanguageChoice(ctx context.Context, chatID int64, code string) {
	if !callmebot.ValidLanguage(code) {
		r.sendText(chatID, somethingWrong)
		return
	}
	if _, err := r.store.UpdateSettings(chatID, store.SettingsUpdate{Language: &code}); err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	r.sendText(chatID, "✅ Language updated: "+code)
}

// --- Timezone ---

func (r *Router) handleTimezone(ctx context.Context, chatID int64) {
	settings, err := r.store.GetSettings(chatID)
	if err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	text := "🌍 Your timezone is " + settings.Timezone + ".\n" +
		"Scheduled times are interpreted in this zone."
	r.sendWithKeyboard(chatID, text, timezoneKeyboard(r.defaultTZ))
}

func (r *Router) handleTimezoneAuto(ctx context.Context, chatID int64) {
	r.applyTimezone(ctx, chatID, r.defaultTZ)
}

func (r *Router) saveTimezone(ctx context.Context, chatID int64, raw string) {
	tz, err := domain.ValidateTZ(raw)
	if err != nil {
		r.sendText(chatID, "❌ Unknown timezone. Use Region/City, e.g. Asia/Singapore.")
		return
	}
	r.applyTimezone(ctx, chatID, tz)
}

func (r *Router) applyTimezone(ctx context.Context, chatID int64, tz string) {
	if _, err := r.store.UpdateSettings(chatID, store.SettingsUpdate{Timezone: &tz}); err != nil {
		r.surfaceErr(chatID, err)
		return
	}
	// Future fire instants move with the zone; resync every call of this user.
	for _, c := range r.store.ListUserCalls(chatID) {
		r.engine.UpdateCall(c.ID)
	}
	r.sendText(chatID, "✅ Timezone updated to "+tz+". All scheduled calls now use it.")
}

// --- Error surfacing ---

func (r *Router) surfaceErr(chatID int64, err error) {
	switch {
	case domain.IsValidation(err):
		r.sendText(chatID, "❌ "+err.Error())
	case errors.Is(err, domain.ErrCapacity):
		r.sendText(chatID, "❌ "+err.Error())
	case errors.Is(err, domain.ErrNotFound):
		r.sendText(chatID, notFoundMsg)
	default:
		r.log.Error("operation failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, somethingWrong)
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
