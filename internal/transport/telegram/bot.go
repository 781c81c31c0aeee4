package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/deskbot/internal/config"
	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

var ErrNoAdminChat = errors.New("admin chat is not configured")

// Handler queues msg behind the sender's earlier messages and calls deliver
// with the replies once it is processed.
type Handler interface {
	Submit(ctx context.Context, msg core.InboundMessage, deliver func([]core.OutboundMessage))
}

type Bot struct {
	bot     *tele.Bot
	cfg     *config.TelegramConfig
	handler Handler
	sender  *sender
}

func NewBot(ctx context.Context, cfg *config.TelegramConfig) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		// updates are handed to the dispatcher queue in the order they arrive
		Synchronous: true,
		OnError: func(err error, c tele.Context) {
			log.FromCtx(ctx).Error().Err(err).Msg("telegram handler failed")
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:    b,
		cfg:    cfg,
		sender: newSender(b),
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Private chats only; group chats would leak answers and contacts.
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
				return nil
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleText)
	b.Handle(tele.OnContact, bot.handleContact)

	return bot, nil
}

// SetHandler attaches the dispatcher. The bot is created first because it
// also serves as the admin notifier the dispatcher depends on.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("username", b.bot.Me.Username).Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleText(c tele.Context) error {
	return b.dispatch(c, textMessage(c.Sender(), c.Text()))
}

func (b *Bot) handleContact(c tele.Context) error {
	contact := c.Message().Contact
	if contact == nil {
		return nil
	}
	// a forwarded card of someone else is not an identity claim
	if contact.UserID != c.Sender().ID {
		return c.Send("Please share your own contact using the button below.")
	}
	return b.dispatch(c, contactMessage(c.Sender(), contact.PhoneNumber))
}

func (b *Bot) dispatch(c tele.Context, msg core.InboundMessage) error {
	ctx := c.Get(baseContextKey).(context.Context)
	if b.handler == nil {
		log.FromCtx(ctx).Error().Msg("telegram update received before handler was attached")
		return nil
	}

	to := c.Recipient()
	go func() { _ = b.bot.Notify(to, tele.Typing) }()

	b.handler.Submit(ctx, msg, func(out []core.OutboundMessage) {
		for _, o := range out {
			// delivery failures never roll back what the handler already stored
			if err := b.sender.send(ctx, to, o); err != nil {
				log.FromCtx(ctx).Error().Err(err).Int64("user_id", msg.UserID).Msg("failed to deliver reply")
			}
		}
	})
	return nil
}

// NotifyAdmin forwards an unanswered question to the configured admin chat.
func (b *Bot) NotifyAdmin(ctx context.Context, identity *core.Identity, question string) error {
	if b.cfg.AdminChatID == 0 {
		return ErrNoAdminChat
	}
	msg := core.OutboundMessage{Text: adminNotice(identity, question)}
	return b.sender.send(ctx, tele.ChatID(b.cfg.AdminChatID), msg)
}

func textMessage(u *tele.User, text string) core.InboundMessage {
	msg := core.InboundMessage{
		UserID:   u.ID,
		Username: u.Username,
		FullName: fullName(u),
		Kind:     core.KindText,
		Text:     text,
	}
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		msg.Kind = core.KindCommand
	}
	return msg
}

func contactMessage(u *tele.User, phone string) core.InboundMessage {
	return core.InboundMessage{
		UserID:   u.ID,
		Username: u.Username,
		FullName: fullName(u),
		Kind:     core.KindIdentityClaim,
		Phone:    normalizePhone(phone),
	}
}

// normalizePhone adds the leading plus Telegram omits for some clients.
// Anything else is passed through for the gate to judge.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return phone
		}
	}
	return "+" + phone
}

func fullName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func adminNotice(identity *core.Identity, question string) string {
	var sb strings.Builder
	sb.WriteString("**Unanswered question**\n\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	if identity == nil {
		sb.WriteString("_sender is not registered_")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("From: %s", identity.Phone))
	if identity.FullName != "" {
		sb.WriteString(fmt.Sprintf(", %s", identity.FullName))
	}
	if identity.Username != "" {
		sb.WriteString(fmt.Sprintf(" (@%s)", identity.Username))
	}
	return sb.String()
}
