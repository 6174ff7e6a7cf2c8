package handler

import (
	"context"
	"fmt"

	"deafbot/internal/dialogue"
	"deafbot/internal/domain"
	"deafbot/internal/keyboard"
	"deafbot/internal/matching"
	"deafbot/internal/transport"

	"go.uber.org/zap"
)

func (h *Handler) startBrowsing(ctx context.Context, ev Event) {
	viewer, err := h.profileRepo.GetProfile(ctx, ev.UserID)
	if err != nil || viewer == nil {
		h.logger.Error("Failed to load viewer profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	candidate, err := h.matcher.NextSuggestion(ctx, *viewer)
	if err != nil {
		h.logger.Error("Failed to find suggestion", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	if candidate == nil {
		h.sendWithMarkup(ctx, ev.ChatID, textNoSuggestion, keyboard.Menu())
		return
	}

	h.sendWithMarkup(ctx, ev.ChatID, textWatchProfiles, keyboard.LookingAtProfiles())
	h.showSuggestion(ctx, ev, *viewer, *candidate)
}

func (h *Handler) startBrowsingLikes(ctx context.Context, ev Event) {
	viewer, err := h.profileRepo.GetProfile(ctx, ev.UserID)
	if err != nil || viewer == nil {
		h.logger.Error("Failed to load viewer profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	liker, err := h.matcher.NextLikedMe(ctx, ev.UserID)
	if err != nil {
		h.logger.Error("Failed to find liker", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	if liker == nil {
		h.sendWithMarkup(ctx, ev.ChatID, textNoLikes, nil)
		return
	}

	h.sendWithMarkup(ctx, ev.ChatID, textWatchLikes, keyboard.LookingAtProfiles())
	h.showLiker(ctx, ev, *viewer, *liker)
}

func (h *Handler) handleBrowsing(ctx context.Context, ev Event, st dialogue.Browsing) {
	if ev.Kind != EventText {
		return
	}
	viewer, candidate := st.Data.Viewer.ID, st.Data.Candidate

	switch ev.Text {
	case keyboard.LikeButton:
		res, err := h.matcher.CheckForMatch(ctx, viewer, candidate)
		if err != nil {
			h.logger.Error("Failed to check for match", zap.Int64("user_id", int64(viewer)), zap.Error(err))
			return
		}
		if res == matching.Match {
			h.sendWithMarkup(ctx, ev.ChatID, textMutualLike, nil)
			h.consumeAndIntroduce(ctx, ev, st.Data)
		} else {
			if err := h.matcher.Like(ctx, viewer, candidate); err != nil {
				h.logger.Error("Failed to save like", zap.Int64("user_id", int64(viewer)), zap.Error(err))
				return
			}
			h.notify(int64(candidate), textSomeoneLiked)
		}
	case keyboard.DislikeButton:
		if err := h.matcher.Skip(ctx, viewer, candidate); err != nil {
			h.logger.Error("Failed to save view", zap.Int64("user_id", int64(viewer)), zap.Error(err))
			return
		}
	case keyboard.MenuButton:
		h.states.Reset(ev.UserID)
		h.sendMenu(ctx, ev.ChatID)
		return
	default:
		return
	}

	h.advanceSuggestions(ctx, ev, st.Data.Viewer)
}

func (h *Handler) handleBrowsingLikes(ctx context.Context, ev Event, st dialogue.BrowsingLikes) {
	if ev.Kind != EventText {
		return
	}
	viewer, liker := st.Data.Viewer.ID, st.Data.Candidate

	switch ev.Text {
	case keyboard.LikeButton:
		h.consumeAndIntroduce(ctx, ev, st.Data)
	case keyboard.DislikeButton:
		if err := h.matcher.Dismiss(ctx, viewer, liker); err != nil {
			h.logger.Error("Failed to dismiss like", zap.Int64("user_id", int64(viewer)), zap.Error(err))
			return
		}
	case keyboard.MenuButton:
		h.states.Reset(ev.UserID)
		h.sendMenu(ctx, ev.ChatID)
		return
	default:
		return
	}

	next, err := h.matcher.NextLikedMe(ctx, viewer)
	if err != nil {
		h.logger.Error("Failed to find liker", zap.Int64("user_id", int64(viewer)), zap.Error(err))
		return
	}
	if next != nil {
		h.showLiker(ctx, ev, st.Data.Viewer, *next)
		return
	}

	h.sendWithMarkup(ctx, ev.ChatID, textLikesOver, nil)
	h.advanceSuggestions(ctx, ev, st.Data.Viewer)
}

// advanceSuggestions moves a browsing user to the next candidate, or back to
// the menu when there is none.
func (h *Handler) advanceSuggestions(ctx context.Context, ev Event, viewer domain.Profile) {
	candidate, err := h.matcher.NextSuggestion(ctx, viewer)
	if err != nil {
		h.logger.Error("Failed to find suggestion", zap.Int64("user_id", int64(viewer.ID)), zap.Error(err))
		return
	}
	if candidate == nil {
		h.states.Reset(ev.UserID)
		h.sendWithMarkup(ctx, ev.ChatID, textNoSuggestion, keyboard.Menu())
		return
	}
	h.showSuggestion(ctx, ev, viewer, *candidate)
}

func (h *Handler) showSuggestion(ctx context.Context, ev Event, viewer, candidate domain.Profile) {
	data, err := dialogue.NewSearchData(viewer, candidate.ID)
	if err != nil {
		h.logger.Error("Failed to snapshot viewer", zap.Int64("user_id", int64(viewer.ID)), zap.Error(err))
		return
	}
	h.states.Update(ev.UserID, dialogue.Browsing{Data: data})
	h.sendProfile(ctx, ev.ChatID, candidate)
}

func (h *Handler) showLiker(ctx context.Context, ev Event, viewer, liker domain.Profile) {
	data, err := dialogue.NewSearchData(viewer, liker.ID)
	if err != nil {
		h.logger.Error("Failed to snapshot viewer", zap.Int64("user_id", int64(viewer.ID)), zap.Error(err))
		return
	}
	h.states.Update(ev.UserID, dialogue.BrowsingLikes{Data: data})
	h.sendProfile(ctx, ev.ChatID, liker)
}

// consumeAndIntroduce closes the match between the viewer and the partner on
// screen. Only the side that consumes the pending like sends introductions.
func (h *Handler) consumeAndIntroduce(ctx context.Context, ev Event, data dialogue.SearchData) {
	consumed, err := h.matcher.ConsumeMatch(ctx, data.Viewer.ID, data.Candidate)
	if err != nil {
		h.logger.Error("Failed to consume match", zap.Int64("user_id", int64(data.Viewer.ID)), zap.Error(err))
		return
	}
	if !consumed {
		h.sendWithMarkup(ctx, ev.ChatID, textOfferExpired, nil)
		return
	}
	h.introduce(ctx, ev, data)
}

// introduce gives each side of a match a link to the other.
func (h *Handler) introduce(ctx context.Context, ev Event, data dialogue.SearchData) {
	partner, err := h.userRepo.GetUser(ctx, data.Candidate)
	if err != nil || partner == nil {
		h.logger.Error("Failed to load match partner", zap.Int64("partner_id", int64(data.Candidate)), zap.Error(err))
		return
	}
	h.logger.Info("Match",
		zap.Int64("user_id", int64(data.Viewer.ID)),
		zap.Int64("partner_id", int64(partner.ID)))

	linkOpts := transport.SendOptions{HTML: true, NoPreview: true}
	h.send(ctx, ev.ChatID, fmt.Sprintf(textIntroduction, partner.Username), linkOpts)

	partnerChat := int64(partner.ID)
	h.sendWithMarkup(ctx, partnerChat, textMutualLike, nil)
	h.sendProfile(ctx, partnerChat, data.Viewer)
	h.send(ctx, partnerChat, "🥳 "+fmt.Sprintf(textIntroduction, ev.Username), linkOpts)
}
