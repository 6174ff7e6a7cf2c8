package keyboard

import "github.com/go-telegram/bot/models"

// Keyboard builds an inline keyboard row by row.
type Keyboard struct {
	rows [][]models.InlineKeyboardButton
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

func NewInlineButton(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func (k *Keyboard) AddRow(buttons ...models.InlineKeyboardButton) *Keyboard {
	k.rows = append(k.rows, buttons)
	return k
}

func (k *Keyboard) Build() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: k.rows}
}

// ReplyKeyboard builds a resized reply keyboard from plain button texts.
type ReplyKeyboard struct {
	rows    [][]models.KeyboardButton
	oneTime bool
}

func NewReplyKeyboard() *ReplyKeyboard {
	return &ReplyKeyboard{}
}

func (k *ReplyKeyboard) AddRow(texts ...string) *ReplyKeyboard {
	row := make([]models.KeyboardButton, 0, len(texts))
	for _, t := range texts {
		row = append(row, models.KeyboardButton{Text: t})
	}
	k.rows = append(k.rows, row)
	return k
}

func (k *ReplyKeyboard) OneTime() *ReplyKeyboard {
	k.oneTime = true
	return k
}

func (k *ReplyKeyboard) Build() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard:        k.rows,
		ResizeKeyboard:  true,
		OneTimeKeyboard: k.oneTime,
	}
}

func Remove() *models.ReplyKeyboardRemove {
	return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
}
