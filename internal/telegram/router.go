package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
	"github.com/haowern98/Telebot/internal/store"
)

// Engine is what the router needs from the trigger engine: per-call resync
// after store mutations, and the armed instant for display.
type Engine interface {
	AddCall(id string)
	RemoveCall(id string)
	UpdateCall(id string)
	NextFireTime(id string) (time.Time, bool)
}

// Caller places an immediate voice call (used by /test).
type Caller interface {
	Deliver(ctx context.Context, contact, message string, s domain.Settings) error
}

// draftStep tracks where a chat is inside a conversational flow. Drafts live
// only in memory; a restart drops half-finished conversations.
type draftStep int

const (
	stepNone draftStep = iota
	stepDate
	stepTime
	stepMessage
	stepTestMessage
	stepUsername
	stepPhone
	stepTimezone
	stepRepeat
)

type draft struct {
	step       draftStep
	recurrence domain.Recurrence
	weekday    string
	date       string
	timeOfDay  string
}

// Router wires Telegram updates to handlers and holds the per-chat draft
// state for multi-step flows.
type Router struct {
	bot       *tgbotapi.BotAPI
	log       *zap.Logger
	store     *store.Store
	engine    Engine
	caller    Caller
	defaultTZ string

	mu     sync.Mutex
	drafts map[int64]*draft
}

func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, st *store.Store, eng Engine, caller Caller, defaultTZ string) *Router {
	return &Router{
		bot:       bot,
		log:       log,
		store:     st,
		engine:    eng,
		caller:    caller,
		defaultTZ: defaultTZ,
		drafts:    make(map[int64]*draft),
	}
}

func (r *Router) setDraft(chatID int64, d *draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[chatID] = d
}

func (r *Router) getDraft(chatID int64) *draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[chatID]
}

func (r *Router) clearDraft(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, chatID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		chatID := upd.Message.Chat.ID
		text := strings.TrimSpace(upd.Message.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/help"):
			r.sendText(chatID, helpText)
		case strings.HasPrefix(text, "/setup"):
			r.sendText(chatID, setupText)
		case strings.HasPrefix(text, "/schedule"):
			r.handleSchedule(ctx, chatID)
		case strings.HasPrefix(text, "/list"):
			r.handleList(ctx, chatID)
		case strings.HasPrefix(text, "/delete"):
			r.showDeleteMenu(ctx, chatID)
		case strings.HasPrefix(text, "/test"):
			r.handleTest(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			r.handleSettings(ctx, chatID)
		case strings.HasPrefix(text, "/timezone"):
			r.handleTimezone(ctx, chatID)
		case strings.HasPrefix(text, "/cancel"):
			r.clearDraft(chatID)
			r.sendText(chatID, "Okay, cancelled.")
		default:
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		chatID := cb.Message.Chat.ID
		data := cb.Data
		_ = r.answerCallback(cb.ID)

		switch {
		case strings.HasPrefix(data, "schedule:"):
			r.handleScheduleType(ctx, chatID, strings.TrimPrefix(data, "schedule:"))
		case strings.HasPrefix(data, "wd:"):
			r.handleWeekdayChoice(ctx, chatID, strings.TrimPrefix(data, "wd:"))
		case data == "menu:schedule":
			r.handleSchedule(ctx, chatID)
		case data == "menu:settings":
			r.handleSettings(ctx, chatID)
		case data == "menu:delete":
			r.showDeleteMenu(ctx, chatID)
		case data == "menu:toggle":
			r.showToggleMenu(ctx, chatID)
		case strings.HasPrefix(data, "del:"):
			r.handleDelete(ctx, chatID, strings.TrimPrefix(data, "del:"))
		case strings.HasPrefix(data, "toggle:"):
			r.handleToggle(ctx, chatID, strings.TrimPrefix(data, "toggle:"))
		case strings.HasPrefix(data, "set:"):
			r.handleSettingsChoice(ctx, chatID, strings.TrimPrefix(data, "set:"))
		case strings.HasPrefix(data, "lang:"):
			r.handleLanguageChoice(ctx, chatID, strings.TrimPrefix(data, "lang:"))
		case data == "tz:auto":
			r.handleTimezoneAuto(ctx, chatID)
		case data == "tz:custom":
			r.setDraft(chatID, &draft{step: stepTimezone})
			r.sendText(chatID, "Enter your timezone as Region/City, e.g. Asia/Singapore or Europe/London.")
		default:
			// Unknown callback, ignore silently.
		}
	}
}

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, ""))
	return err
}
