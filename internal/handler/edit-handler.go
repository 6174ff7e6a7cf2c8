package handler

import (
	"context"
	"errors"

	"deafbot/internal/callback"
	"deafbot/internal/dialogue"
	"deafbot/internal/domain"
	"deafbot/internal/keyboard"
	"deafbot/internal/transport"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// enterEditMode moves the edit button from the rendered profile to a
// separate anchor message listing the fields.
func (h *Handler) enterEditMode(ctx context.Context, ev Event) {
	if err := h.tr.EditReplyMarkup(ctx, ev.CallbackMessage, &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{},
	}); err != nil {
		h.logger.Warn("Failed to remove edit button", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
	}

	anchor, ok := h.send(ctx, ev.ChatID, textEditMode, transport.SendOptions{Markup: keyboard.EditProfile()})
	if !ok {
		return
	}
	h.states.SetEditSession(ev.UserID, dialogue.EditSession{Profile: ev.CallbackMessage, Anchor: anchor})
}

func (h *Handler) promptField(ctx context.Context, ev Event, field callback.ProfileField) {
	anchor := ev.CallbackMessage
	prompt := editPrompts[field]

	switch field {
	case callback.FieldHearingLevel:
		// Answered by an SHR button, so the dialogue state stays as is.
		p, err := h.profileRepo.GetProfile(ctx, ev.UserID)
		if err != nil || p == nil {
			h.logger.Error("Failed to load own profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
			return
		}
		h.editAnchor(ctx, anchor, prompt, keyboard.SetHearingLevel(p.Sex))
		return
	case callback.FieldDescription:
		h.editAnchor(ctx, anchor, prompt, keyboard.LeaveDescriptionEmpty())
	default:
		h.editAnchor(ctx, anchor, prompt, nil)
	}

	h.states.Update(ev.UserID, dialogue.EditingField{
		Field:  field,
		Origin: dialogue.Origin{CallbackID: ev.CallbackID, Anchor: anchor},
	})
}

func (h *Handler) setHearingLevel(ctx context.Context, ev Event, level domain.HearingLevel) {
	if err := h.profileRepo.UpdateHearingLevel(ctx, ev.UserID, level); err != nil {
		h.logger.Error("Failed to update hearing level", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	h.restoreAnchor(ctx, ev.CallbackMessage)
}

func (h *Handler) clearDescription(ctx context.Context, ev Event) {
	if err := h.profileRepo.UpdateDescription(ctx, ev.UserID, nil); err != nil {
		h.logger.Error("Failed to clear description", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	h.states.Reset(ev.UserID)
	h.restoreAnchor(ctx, ev.CallbackMessage)
}

func (h *Handler) finishEditing(ctx context.Context, ev Event) {
	h.deleteMessage(ctx, ev.CallbackMessage)
	if es, ok := h.states.EditSession(ev.UserID); ok {
		h.deleteMessage(ctx, es.Profile)
		h.states.ClearEditSession(ev.UserID)
	}
	h.states.Reset(ev.UserID)

	p, err := h.profileRepo.GetProfile(ctx, ev.UserID)
	if err != nil || p == nil {
		h.logger.Error("Failed to load own profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	h.sendWithMarkup(ctx, ev.ChatID, textNewProfile, nil)
	h.sendOwnProfile(ctx, ev.ChatID, *p)
}

// handleEditInput applies the reply to an EditingField prompt. Replies of the
// wrong shape are ignored. Rejected replies stay on screen with an error
// prompt until a valid one arrives; then all of them are cleaned up.
func (h *Handler) handleEditInput(ctx context.Context, ev Event, st dialogue.EditingField) {
	var (
		rejection transport.MessageRef
		applied   bool
		err       error
	)

	switch st.Field {
	case callback.FieldName:
		if ev.Kind != EventText {
			return
		}
		if verr := domain.ValidateName(ev.Text); verr != nil {
			var tooLong *domain.NameTooLongError
			if errors.As(verr, &tooLong) {
				rejection, _ = h.sendHTML(ctx, ev.ChatID, nameTooLongText(tooLong))
			}
			break
		}
		err = h.profileRepo.UpdateName(ctx, ev.UserID, ev.Text)
		applied = true

	case callback.FieldAge:
		if ev.Kind != EventText {
			return
		}
		age, ok := parseAge(ev.Text)
		if !ok {
			rejection, _ = h.send(ctx, ev.ChatID, textAgeNotNumber, transport.SendOptions{})
			break
		}
		err = h.profileRepo.UpdateAge(ctx, ev.UserID, age)
		applied = true

	case callback.FieldCity:
		if ev.Kind != EventText && ev.Kind != EventLocation {
			return
		}
		loc, ref, ok := h.resolveLocation(ctx, ev)
		if !ok {
			rejection = ref
			break
		}
		err = h.profileRepo.UpdateLocation(ctx, ev.UserID, loc)
		applied = true

	case callback.FieldDescription:
		if ev.Kind != EventText {
			return
		}
		var desc *string
		if !domain.IsLeaveEmpty(ev.Text) {
			text := ev.Text
			desc = &text
		}
		err = h.profileRepo.UpdateDescription(ctx, ev.UserID, desc)
		applied = true

	case callback.FieldPhoto:
		if ev.Kind != EventPhoto {
			return
		}
		err = h.profileRepo.UpdatePhotos(ctx, ev.UserID, []domain.PhotoID{ev.PhotoID})
		applied = true

	default:
		return
	}

	if err != nil {
		h.logger.Error("Failed to update profile",
			zap.Int64("user_id", int64(ev.UserID)),
			zap.String("field", string(st.Field)),
			zap.Error(err))
		return
	}

	if !applied {
		st.Origin.Prompts = append(st.Origin.Prompts, ev.Message)
		if !rejection.IsZero() {
			st.Origin.Prompts = append(st.Origin.Prompts, rejection)
		}
		h.states.Update(ev.UserID, st)
		return
	}

	h.deleteMessage(ctx, ev.Message)
	for i := len(st.Origin.Prompts) - 1; i >= 0; i-- {
		h.deleteMessage(ctx, st.Origin.Prompts[i])
	}
	h.restoreAnchor(ctx, st.Origin.Anchor)
	h.states.Reset(ev.UserID)
}

func (h *Handler) editAnchor(ctx context.Context, anchor transport.MessageRef, text string, markup models.ReplyMarkup) {
	if err := h.tr.EditText(ctx, anchor, text, transport.SendOptions{Markup: markup}); err != nil {
		h.logger.Warn("Failed to edit anchor message", zap.Int("message_id", anchor.MessageID), zap.Error(err))
	}
}

func (h *Handler) restoreAnchor(ctx context.Context, anchor transport.MessageRef) {
	h.editAnchor(ctx, anchor, textEditMode, keyboard.EditProfile())
}
