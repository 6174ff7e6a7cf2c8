package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram sends through the Bot API client.
type Telegram struct {
	bot *bot.Bot
}

var _ Transport = (*Telegram)(nil)

func NewTelegram(b *bot.Bot) *Telegram {
	return &Telegram{bot: b}
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error) {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: opts.Markup,
	}
	if opts.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if opts.NoPreview {
		params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: bot.True()}
	}

	msg, err := t.bot.SendMessage(ctx, params)
	if err != nil {
		return MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

func (t *Telegram) SendMediaGroup(ctx context.Context, chatID int64, photos []string, caption string) (MessageRef, error) {
	if len(photos) == 0 {
		return MessageRef{}, errors.New("send media group: no photos")
	}

	media := make([]models.InputMedia, 0, len(photos))
	for i, id := range photos {
		p := &models.InputMediaPhoto{Media: id}
		if i == 0 {
			p.Caption = caption
		}
		media = append(media, p)
	}

	msgs, err := t.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID: chatID,
		Media:  media,
	})
	if err != nil {
		return MessageRef{}, fmt.Errorf("send media group: %w", err)
	}
	if len(msgs) == 0 {
		return MessageRef{}, errors.New("send media group: empty response")
	}
	return MessageRef{ChatID: chatID, MessageID: msgs[0].ID}, nil
}

func (t *Telegram) EditText(ctx context.Context, ref MessageRef, text string, opts SendOptions) error {
	params := &bot.EditMessageTextParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		Text:        text,
		ReplyMarkup: opts.Markup,
	}
	if opts.HTML {
		params.ParseMode = models.ParseModeHTML
	}

	if _, err := t.bot.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("edit message text: %w", err)
	}
	return nil
}

func (t *Telegram) EditReplyMarkup(ctx context.Context, ref MessageRef, markup models.ReplyMarkup) error {
	_, err := t.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("edit reply markup: %w", err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, ref MessageRef) error {
	_, err := t.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (t *Telegram) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := t.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	if err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, filename string, data io.Reader, caption string) error {
	_, err := t.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: data},
		Caption:  caption,
	})
	if err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}
