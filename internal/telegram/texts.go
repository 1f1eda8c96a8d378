package telegram

import (
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/haowern98/Telebot/internal/callmebot"
	"github.com/haowern98/Telebot/internal/domain"
)

const welcomeText = `📞 Welcome to the Call Scheduler Bot!

I place real voice calls to your phone at the times you choose, reading your reminder out loud with text-to-speech.

Before your first call, authorize CallMeBot once, see /setup.

What I can do:
/schedule - schedule a new call
/list - show your scheduled calls
/delete - delete a call
/test - place a test call right now
/settings - contact, language, repeat
/timezone - set your timezone
/help - full command reference`

const helpText = `📖 Command reference

/schedule - schedule a daily, weekly or one-time call
/list - show your scheduled calls with next call times
/delete - delete a scheduled call
/test - place a test call to verify your setup
/settings - username or phone, voice language, repeat count, text copy
/timezone - set the timezone your call times are read in
/cancel - abort whatever I am currently asking you for

Calls are placed through CallMeBot, make sure you completed /setup first.`

const setupText = `🛠 One-time CallMeBot authorization

1. Open a chat with @CallMeBot_txtbot on Telegram
2. Send /start to it
3. That is it, CallMeBot may now call your Telegram account

If you want calls to a phone number instead of a Telegram account, set your phone in /settings. Phone calls need no authorization but availability depends on your country.

When done, run /test to verify.`

const (
	somethingWrong = "😕 Something went wrong. Please try again."
	notFoundMsg    = "❌ I could not find that call. It may have been deleted already."
)

// describeCall renders one call the way it appears in lists and confirmations.
func describeCall(c *domain.Call) string {
	var when string
	switch c.Recurrence {
	case domain.RecurDaily:
		when = "every day at " + c.Time
	case domain.RecurWeekly:
		when = "every " + title(c.Weekday) + " at " + c.Time
	case domain.RecurOnce:
		when = "once on " + c.Date + " at " + c.Time
	}
	return fmt.Sprintf("📞 %s\n   💬 %q", when, c.Message)
}

func describeSettings(s *domain.Settings) string {
	contact := s.Contact()
	if contact == "" {
		contact = "not set"
	}
	copyMode := "off"
	if s.SendTextCopy {
		copyMode = "on"
	}
	return fmt.Sprintf(`⚙️ Your settings

👤 Contact: %s
🗣 Language: %s
🔁 Repeat: %d time(s)
📨 Text copy: %s
🌍 Timezone: %s

What would you like to change?`,
		contact, s.Language, s.Repeat, copyMode, s.Timezone)
}

// --- Inline keyboards ---

func startKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📞 Schedule a call", "menu:schedule"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", "menu:settings"),
		),
	)
}

func scheduleTypeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Daily", "schedule:daily"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Weekly", "schedule:weekly"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1️⃣ One-time", "schedule:once"),
		),
	)
}

func weekdayKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(domain.Weekdays))
	for _, wd := range domain.Weekdays {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(title(wd), "wd:"+wd),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func listMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", "menu:delete"),
			tgbotapi.NewInlineKeyboardButtonData("⏯ Pause / Resume", "menu:toggle"),
		),
	)
}

// callsKeyboard builds one button per call with "<prefix>:<id>" callback data.
func callsKeyboard(calls []domain.Call, prefix string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(calls))
	for i := range calls {
		c := &calls[i]
		label := callButtonLabel(c)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefix+":"+c.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func callButtonLabel(c *domain.Call) string {
	var when string
	switch c.Recurrence {
	case domain.RecurDaily:
		when = "daily " + c.Time
	case domain.RecurWeekly:
		when = title(c.Weekday)[:3] + " " + c.Time
	case domain.RecurOnce:
		when = c.Date + " " + c.Time
	}
	msg := c.Message
	if utf8.RuneCountInString(msg) > 24 {
		msg = string([]rune(msg)[:21]) + "..."
	}
	status := ""
	if !c.Active {
		status = "⏸ "
	}
	return status + when + " · " + msg
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Username", "set:username"),
			tgbotapi.NewInlineKeyboardButtonData("📱 Phone", "set:phone"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗣 Language", "set:language"),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Repeat", "set:repeat"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 Toggle text copy", "set:cc"),
		),
	)
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	langs := callmebot.Languages()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(langs)+1)/2)
	for i := 0; i < len(langs); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(langs[i].Name, "lang:"+langs[i].Code),
		}
		if i+1 < len(langs) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(langs[i+1].Name, "lang:"+langs[i+1].Code))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func timezoneKeyboard(defaultTZ string) tgbotapi.InlineKeyboardMarkup {
	auto := "🖥 Use server timezone"
	if defaultTZ != "" {
		auto = "🖥 Use " + defaultTZ
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(auto, "tz:auto"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⌨️ Type a timezone", "tz:custom"),
		),
	)
}
