package core

import "fmt"

type MessageKind int

const (
	KindCommand MessageKind = iota + 1
	KindText
	KindIdentityClaim
)

func (k MessageKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindIdentityClaim:
		return "identity_claim"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// InboundMessage is what a transport hands to the dispatcher.
// Phone is only set for KindIdentityClaim.
type InboundMessage struct {
	UserID   int64
	Username string
	FullName string
	Kind     MessageKind
	Text     string
	Phone    string
}

type KeyboardHint int

const (
	KeyboardNone KeyboardHint = iota
	KeyboardRequestContact
	KeyboardRemove
)

// TextFormat tells the transport how to render OutboundMessage.Text.
type TextFormat int

const (
	// FormatMarkdown is used for the bot's own replies.
	FormatMarkdown TextFormat = iota
	// FormatPlain is stored content such as FAQ answers, shown as written.
	FormatPlain
)

type OutboundMessage struct {
	UserID   int64
	Text     string
	Keyboard KeyboardHint
	Format   TextFormat
}
