package handler

import (
	"strings"

	"deafbot/internal/domain"
	"deafbot/internal/transport"

	"github.com/go-telegram/bot/models"
)

type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventLocation
	EventPhoto
	EventButton
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventLocation:
		return "location"
	case EventPhoto:
		return "photo"
	case EventButton:
		return "button"
	}
	return "unknown"
}

// Event is an inbound update reduced to what the dialogue needs. Only the
// fields of its Kind are set, besides the sender and chat fields.
type Event struct {
	Kind         EventKind
	UserID       domain.UserID
	ChatID       int64
	Private      bool
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string

	// Message is the user's own message. Zero for buttons.
	Message transport.MessageRef

	Command string
	Args    string

	Text     string
	Location *domain.Coordinates
	PhotoID  domain.PhotoID

	CallbackID   string
	CallbackData string

	// CallbackMessage is the bot message that carried the pressed button.
	CallbackMessage transport.MessageRef
}

// Classify returns false for updates the bot does not react to: edits,
// channel posts, stickers and the like.
func Classify(update *models.Update) (Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		return classifyCallback(update.CallbackQuery)
	case update.Message != nil:
		return classifyMessage(update.Message)
	}
	return Event{}, false
}

func classifyMessage(msg *models.Message) (Event, bool) {
	if msg.From == nil {
		return Event{}, false
	}

	ev := Event{
		UserID:       domain.UserID(msg.From.ID),
		ChatID:       msg.Chat.ID,
		Private:      msg.Chat.Type == models.ChatTypePrivate,
		Username:     msg.From.Username,
		FirstName:    msg.From.FirstName,
		LastName:     msg.From.LastName,
		LanguageCode: msg.From.LanguageCode,
		Message:      transport.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID},
	}

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		ev.Kind = EventCommand
		ev.Command, ev.Args = parseCommand(msg.Text)
	case msg.Text != "":
		ev.Kind = EventText
		ev.Text = msg.Text
	case msg.Location != nil:
		ev.Kind = EventLocation
		ev.Location = &domain.Coordinates{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}
	case len(msg.Photo) > 0:
		// Telegram lists sizes from smallest to largest.
		ev.Kind = EventPhoto
		ev.PhotoID = domain.PhotoID(msg.Photo[len(msg.Photo)-1].FileID)
	default:
		return Event{}, false
	}
	return ev, true
}

func classifyCallback(q *models.CallbackQuery) (Event, bool) {
	ev := Event{
		Kind:         EventButton,
		UserID:       domain.UserID(q.From.ID),
		ChatID:       q.From.ID,
		Private:      true,
		Username:     q.From.Username,
		FirstName:    q.From.FirstName,
		LastName:     q.From.LastName,
		LanguageCode: q.From.LanguageCode,
		CallbackID:   q.ID,
		CallbackData: q.Data,
	}

	if m := q.Message.Message; m != nil {
		ev.ChatID = m.Chat.ID
		ev.Private = m.Chat.Type == models.ChatTypePrivate
		ev.CallbackMessage = transport.MessageRef{ChatID: m.Chat.ID, MessageID: m.ID}
	} else if m := q.Message.InaccessibleMessage; m != nil {
		ev.ChatID = m.Chat.ID
		ev.Private = m.Chat.Type == models.ChatTypePrivate
		ev.CallbackMessage = transport.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID}
	}
	return ev, true
}

// parseCommand splits "/start@deafbot arg" into "start" and "arg".
func parseCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}
