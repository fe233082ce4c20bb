// Package telegram connects the reminder engine to Telegram: it pushes
// notifications out and feeds inbound messages and button presses into
// the command router.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"

	"github.com/chiahung/remibot/internal/commands"
	"github.com/chiahung/remibot/internal/config"
	"github.com/chiahung/remibot/internal/dispatch"
	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/store"
)

// Handler consumes converted inbound events.
type Handler interface {
	Handle(ctx context.Context, ev commands.Event) error
}

// Bot is the subset of the telego client the connector uses.
type Bot interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error)
}

// Connector is the Telegram gateway.
type Connector struct {
	bot     Bot
	handler Handler
	cfg     config.TelegramConfig
	logger  *logger.Logger
}

// New creates a connector with a real telego bot client.
func New(cfg config.TelegramConfig, handler Handler, log *logger.Logger) (*Connector, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewWithBot(bot, cfg, handler, log), nil
}

// NewWithBot creates a connector around an existing bot client.
func NewWithBot(bot Bot, cfg config.TelegramConfig, handler Handler, log *logger.Logger) *Connector {
	return &Connector{bot: bot, handler: handler, cfg: cfg, logger: log}
}

// Name identifies the channel in logs and metrics.
func (c *Connector) Name() string { return "telegram" }

// Push delivers one notification. The notification target is the chat id.
func (c *Connector) Push(ctx context.Context, n dispatch.Notification) error {
	chatID, err := strconv.ParseInt(n.Target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram target %q: %w", n.Target, err)
	}

	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   n.Text,
	}
	if markup := buildKeyboard(n.Buttons); markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Listen runs the long-poll loop until the context is cancelled.
func (c *Connector) Listen(ctx context.Context) error {
	c.logger.Info("starting telegram long polling",
		logger.Field{Key: "timeout_sec", Value: c.cfg.LongPollTimeoutSec})

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: c.cfg.LongPollTimeoutSec,
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("telegram long polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("telegram updates channel closed")
				return nil
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Connector) handleUpdate(ctx context.Context, update telego.Update) {
	ev, ack, ok := convertUpdate(update)
	if !ok {
		return
	}

	if ack != "" {
		if err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: ack,
		}); err != nil {
			c.logger.Warn("failed to answer callback query",
				logger.Field{Key: "callback_id", Value: ack})
		}
	}

	if err := c.handler.Handle(ctx, ev); err != nil {
		c.logger.Error("failed to handle inbound event", err,
			logger.Field{Key: "user_id", Value: ev.UserID})
	}
}

// convertUpdate maps a Telegram update onto the engine's inbound event.
// The callback query id, when present, must be acknowledged by the
// caller. Updates with no text and no callback data are ignored.
func convertUpdate(update telego.Update) (ev commands.Event, callbackID string, ok bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil || cq.Data == "" {
			return commands.Event{}, cq.ID, false
		}
		chat := cq.Message.GetChat()
		return commands.Event{
			UserID:      strconv.FormatInt(cq.From.ID, 10),
			Target:      strconv.FormatInt(chat.ID, 10),
			TargetKind:  targetKind(chat.Type),
			DisplayName: displayName(&cq.From),
			Postback:    cq.Data,
		}, cq.ID, true

	case update.Message != nil && update.Message.Text != "":
		msg := update.Message
		if msg.From == nil {
			return commands.Event{}, "", false
		}
		return commands.Event{
			UserID:      strconv.FormatInt(msg.From.ID, 10),
			Target:      strconv.FormatInt(msg.Chat.ID, 10),
			TargetKind:  targetKind(msg.Chat.Type),
			DisplayName: displayName(msg.From),
			Text:        msg.Text,
		}, "", true

	default:
		return commands.Event{}, "", false
	}
}

func targetKind(chatType string) store.TargetKind {
	switch chatType {
	case "group", "supergroup":
		return store.TargetGroup
	case "channel":
		return store.TargetRoom
	default:
		return store.TargetUser
	}
}

// displayName falls back to the username, then a generic placeholder;
// name lookup failures never block reminder handling.
func displayName(u *telego.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "there"
}

// buildKeyboard renders buttons one per row, matching how short action
// menus read best in Telegram clients.
func buildKeyboard(buttons []dispatch.Button) *telego.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, len(buttons))
	for i, b := range buttons {
		rows[i] = []telego.InlineKeyboardButton{{
			Text:         b.Label,
			CallbackData: b.Data,
		}}
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}
