package transport

import (
	"context"
	"io"

	"github.com/go-telegram/bot/models"
)

// MessageRef points at a message the bot has sent (or received) in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

type SendOptions struct {
	Markup    models.ReplyMarkup
	HTML      bool
	NoPreview bool
}

// Transport is everything the bot needs from the chat platform.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error)
	// SendMediaGroup binds caption to the first photo and returns the ref of
	// the first message in the group.
	SendMediaGroup(ctx context.Context, chatID int64, photos []string, caption string) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opts SendOptions) error
	EditReplyMarkup(ctx context.Context, ref MessageRef, markup models.ReplyMarkup) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data io.Reader, caption string) error
}
