package handler

import (
	"context"

	"deafbot/internal/callback"
	"deafbot/internal/dialogue"
	"deafbot/internal/keyboard"

	"go.uber.org/zap"
)

// HandleEvent runs one inbound event to completion. Events of the same user
// are handled one at a time.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) {
	if ev.Kind == EventButton {
		if err := h.tr.AnswerCallback(ctx, ev.CallbackID); err != nil {
			h.logger.Warn("Failed to answer callback", zap.String("callback_id", ev.CallbackID), zap.Error(err))
		}
	}

	if !ev.Private {
		h.sendWithMarkup(ctx, ev.ChatID, textPrivateOnly, nil)
		return
	}
	if ev.Username == "" {
		h.sendHTML(ctx, ev.ChatID, textUsernameNeeded)
		return
	}

	unlock := h.states.Lock(ev.UserID)
	defer unlock()

	if ev.Kind == EventCommand && h.isAdminCommand(ev.Command) {
		h.handleAdminCommand(ctx, ev)
		return
	}

	hasProfile, err := h.profileRepo.HasProfile(ctx, ev.UserID)
	if err != nil {
		h.logger.Error("Failed to check profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	if !hasProfile {
		h.handleNewcomer(ctx, ev)
		return
	}

	if ev.Kind == EventCommand {
		if ev.Command == "start" {
			h.states.Reset(ev.UserID)
			h.sendMenu(ctx, ev.ChatID)
		}
		return
	}
	if ev.Kind == EventButton {
		h.handleCallback(ctx, ev)
		return
	}

	switch st := h.states.Get(ev.UserID).(type) {
	case dialogue.Idle:
		h.handleIdle(ctx, ev)
	case dialogue.CreatingProfile:
		h.handleWizardStep(ctx, ev, st)
	case dialogue.Browsing:
		h.handleBrowsing(ctx, ev, st)
	case dialogue.BrowsingLikes:
		h.handleBrowsingLikes(ctx, ev, st)
	case dialogue.EditingField:
		h.handleEditInput(ctx, ev, st)
	}
}

// handleNewcomer serves users without a profile. They can only start or
// continue the wizard.
func (h *Handler) handleNewcomer(ctx context.Context, ev Event) {
	if ev.Kind == EventCommand && ev.Command == "start" {
		h.startWizard(ctx, ev)
		return
	}
	if st, ok := h.states.Get(ev.UserID).(dialogue.CreatingProfile); ok {
		h.handleWizardStep(ctx, ev, st)
		return
	}
	h.logger.Debug("Dropping event from user without profile",
		zap.Int64("user_id", int64(ev.UserID)),
		zap.Stringer("kind", ev.Kind))
}

func (h *Handler) handleIdle(ctx context.Context, ev Event) {
	if ev.Kind != EventText {
		return
	}

	switch ev.Text {
	case keyboard.SearchButton:
		h.startBrowsing(ctx, ev)
	case keyboard.ProfileButton:
		p, err := h.profileRepo.GetProfile(ctx, ev.UserID)
		if err != nil || p == nil {
			h.logger.Error("Failed to load own profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
			return
		}
		h.sendOwnProfile(ctx, ev.ChatID, *p)
	case keyboard.LikesButton:
		h.startBrowsingLikes(ctx, ev)
	case keyboard.LikeButton, keyboard.DislikeButton, keyboard.MenuButton:
		h.sendWithMarkup(ctx, ev.ChatID, textActivityLost, nil)
		h.sendMenu(ctx, ev.ChatID)
	}
}

func (h *Handler) handleCallback(ctx context.Context, ev Event) {
	data, err := callback.Decode(ev.CallbackData)
	if err != nil {
		h.logger.Error("Failed to decode callback", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}

	switch data.Code {
	case callback.EnterProfileEditingMode:
		h.enterEditMode(ctx, ev)
	case callback.EditProfileData:
		h.promptField(ctx, ev, data.Field)
	case callback.SetHearingLevel:
		h.setHearingLevel(ctx, ev, data.Level)
	case callback.LeaveEmptyDescription:
		h.clearDescription(ctx, ev)
	case callback.FinishEditing:
		h.finishEditing(ctx, ev)
	}
}
