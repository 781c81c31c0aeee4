package telegram

import (
	"context"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/deskbot/internal/core"
	"github.com/sandevgo/deskbot/pkg/conv"
	"github.com/sandevgo/deskbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const maxTelegramMsgLen = 4000 // Safety margin below 4096

const shareContactLabel = "📱 Share contact"

type sender struct {
	bot *tele.Bot
}

func newSender(bot *tele.Bot) *sender {
	return &sender{bot: bot}
}

// send renders msg as Telegram HTML and delivers it in chunks. The keyboard
// goes with the last chunk so it stays under the final message.
func (s *sender) send(ctx context.Context, to tele.Recipient, msg core.OutboundMessage) error {
	logger := log.FromCtx(ctx)

	text := renderHTML(msg)
	if text == "" {
		return nil
	}

	chunks := splitHTML(text, maxTelegramMsgLen)
	for i, chunk := range chunks {
		opts := []interface{}{tele.ModeHTML}
		if i == len(chunks)-1 {
			if markup := replyMarkup(msg.Keyboard); markup != nil {
				opts = append(opts, markup)
			}
		}

		if _, err := s.bot.Send(to, chunk, opts...); err != nil {
			logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram chunk")
			return err
		}
	}
	return nil
}

// renderHTML keeps stored content exactly as written and renders the bot's
// own Markdown replies.
func renderHTML(msg core.OutboundMessage) string {
	if msg.Format == core.FormatPlain {
		return html.EscapeString(strings.TrimSpace(msg.Text))
	}
	return conv.MarkdownToTelegramHTML([]byte(msg.Text))
}

func replyMarkup(kb core.KeyboardHint) *tele.ReplyMarkup {
	switch kb {
	case core.KeyboardRequestContact:
		m := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
		m.Reply(m.Row(m.Contact(shareContactLabel)))
		return m
	case core.KeyboardRemove:
		return &tele.ReplyMarkup{RemoveKeyboard: true}
	default:
		return nil
	}
}

// splitHTML splits text into chunks respecting Telegram's limit. Cuts prefer
// newlines and never fall inside a rune, a tag or an entity. Tags still open
// at a cut are closed in that chunk and reopened in the next one.
func splitHTML(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cut := cutPoint(text, maxLen)
		chunk := text[:cut]
		open := openTags(chunk)
		for i := len(open) - 1; i >= 0; i-- {
			chunk += "</" + tagName(open[i]) + ">"
		}

		chunks = append(chunks, chunk)
		text = strings.Join(open, "") + strings.TrimSpace(text[cut:])
	}
	return chunks
}

func cutPoint(text string, maxLen int) int {
	if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/3 {
		return idx
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	head := text[:cut]
	if lt := strings.LastIndexByte(head, '<'); lt > 0 && lt > strings.LastIndexByte(head, '>') {
		cut = lt
	} else if amp := strings.LastIndexByte(head, '&'); amp > 0 && amp > strings.LastIndexByte(head, ';') {
		cut = amp
	}

	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		cut = size
	}
	return cut
}

// openTags returns the tags left unclosed at the end of s, outermost first.
func openTags(s string) []string {
	var stack []string
	for {
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			break
		}
		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			break
		}
		tag := s[lt : lt+gt+1]
		s = s[lt+gt+1:]

		switch {
		case strings.HasPrefix(tag, "</"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case strings.HasSuffix(tag, "/>"):
		default:
			stack = append(stack, tag)
		}
	}
	return stack
}

func tagName(open string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(open, "<"), ">")
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	return name
}
