package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deafbot/internal/dialogue"
	"deafbot/internal/domain"
	"deafbot/internal/geocoder"
	"deafbot/internal/keyboard"
	"deafbot/internal/transport"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

func (h *Handler) startWizard(ctx context.Context, ev Event) {
	h.states.Update(ev.UserID, dialogue.CreatingProfile{
		Builder: domain.NewProfileBuilder(ev.UserID),
		Step:    domain.StepName,
	})
	h.send(ctx, ev.ChatID, textGreeting, transport.SendOptions{HTML: true, Markup: keyboard.Remove()})
}

// handleWizardStep feeds one answer into the builder. Invalid answers keep
// the wizard on the same step.
func (h *Handler) handleWizardStep(ctx context.Context, ev Event, st dialogue.CreatingProfile) {
	b := st.Builder

	switch st.Step {
	case domain.StepName:
		if ev.Kind != EventText {
			return
		}
		if err := domain.ValidateName(ev.Text); err != nil {
			var tooLong *domain.NameTooLongError
			if errors.As(err, &tooLong) {
				h.sendHTML(ctx, ev.ChatID, nameTooLongText(tooLong))
			}
			return
		}
		name := ev.Text
		b.Name = &name
		h.nextStep(ctx, ev, st, textAskAge, nil)

	case domain.StepAge:
		if ev.Kind != EventText {
			return
		}
		age, ok := parseAge(ev.Text)
		if !ok {
			h.sendWithMarkup(ctx, ev.ChatID, textAgeNotNumber, nil)
			return
		}
		b.Age = &age
		h.nextStep(ctx, ev, st, textAskCity, keyboard.RequestLocation())

	case domain.StepLocation:
		loc, _, ok := h.resolveLocation(ctx, ev)
		if !ok {
			return
		}
		b.Location = &loc
		h.nextStep(ctx, ev, st, textAskSex, keyboard.SelectSex())

	case domain.StepSex:
		if ev.Kind != EventText {
			return
		}
		sex, ok := domain.ParseSex(ev.Text)
		if !ok {
			h.sendWithMarkup(ctx, ev.ChatID, textAskSex, keyboard.SelectSex())
			return
		}
		b.Sex = &sex
		h.nextStep(ctx, ev, st, textAskWantToMeet, keyboard.SelectWantToMeet())

	case domain.StepMeetingPreferences:
		if ev.Kind != EventText {
			return
		}
		want, ok := domain.ParseWantToMeet(ev.Text)
		if !ok {
			h.sendWithMarkup(ctx, ev.ChatID, textAskWantToMeet, keyboard.SelectWantToMeet())
			return
		}
		b.WantToMeet = want
		h.nextStep(ctx, ev, st, textAskHearing, keyboard.SelectHearingLevel(builderSex(b)))

	case domain.StepHearingLevel:
		if ev.Kind != EventText {
			return
		}
		level, ok := domain.ParseHearingLevel(ev.Text)
		if !ok {
			h.sendWithMarkup(ctx, ev.ChatID, textAskHearing, keyboard.SelectHearingLevel(builderSex(b)))
			return
		}
		b.HearingLevel = &level
		h.nextStep(ctx, ev, st, textAskDescription, keyboard.LeaveEmpty())

	case domain.StepDescription:
		if ev.Kind != EventText {
			return
		}
		if !domain.IsLeaveEmpty(ev.Text) {
			desc := ev.Text
			b.Description = &desc
		}
		h.nextStep(ctx, ev, st, textAskPhoto, keyboard.Remove())

	case domain.StepPhoto:
		if ev.Kind != EventPhoto {
			return
		}
		b.AddPhoto(ev.PhotoID)
		h.finishWizard(ctx, ev, b)
	}
}

func (h *Handler) nextStep(ctx context.Context, ev Event, st dialogue.CreatingProfile, prompt string, markup models.ReplyMarkup) {
	h.states.Update(ev.UserID, dialogue.CreatingProfile{Builder: st.Builder, Step: st.Step.Next()})
	h.sendWithMarkup(ctx, ev.ChatID, prompt, markup)
}

func (h *Handler) finishWizard(ctx context.Context, ev Event, b *domain.ProfileBuilder) {
	p := b.Build()

	user := &domain.User{
		ID:           ev.UserID,
		FirstName:    ev.FirstName,
		LastName:     optional(ev.LastName),
		Username:     ev.Username,
		LanguageCode: optional(ev.LanguageCode),
		JoinDate:     time.Now(),
	}
	if err := h.userRepo.AddUser(ctx, user); err != nil {
		h.logger.Error("Failed to save user", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	if err := h.profileRepo.CreateProfile(ctx, &p); err != nil {
		h.logger.Error("Failed to save profile", zap.Int64("user_id", int64(ev.UserID)), zap.Error(err))
		return
	}
	h.logger.Info("Profile created",
		zap.Int64("user_id", int64(p.ID)),
		zap.String("city", p.Location.Actual),
		zap.String("sex", string(p.Sex)))

	h.states.Reset(ev.UserID)
	h.sendWithMarkup(ctx, ev.ChatID, textProfileReady, keyboard.Menu())
	h.sendProfile(ctx, ev.ChatID, p)
}

// resolveLocation accepts a typed city or a shared point. On rejection it
// returns false and the ref of the message that explains why, which is zero
// when the event carried no location at all.
func (h *Handler) resolveLocation(ctx context.Context, ev Event) (domain.Location, transport.MessageRef, bool) {
	var (
		loc   domain.Location
		err   error
		input string
	)
	switch {
	case ev.Kind == EventText:
		input = strings.TrimSpace(ev.Text)
		loc, err = h.geocoder.Resolve(ctx, input)
	case ev.Kind == EventLocation && ev.Location != nil:
		input = fmt.Sprintf("%.6f, %.6f", ev.Location.Latitude, ev.Location.Longitude)
		loc, err = h.geocoder.ResolvePoint(ctx, ev.Location.Latitude, ev.Location.Longitude)
	default:
		return domain.Location{}, transport.MessageRef{}, false
	}
	if err == nil {
		return loc, transport.MessageRef{}, true
	}

	var notFound *geocoder.CityNotFoundError
	if errors.As(err, &notFound) {
		ref, _ := h.sendHTML(ctx, ev.ChatID, cityNotFoundText(input))
		return domain.Location{}, ref, false
	}

	h.logger.Error("Failed to resolve location", zap.String("input", input), zap.Error(err))
	ref, _ := h.send(ctx, ev.ChatID, textGeocoderFailed, transport.SendOptions{})
	return domain.Location{}, ref, false
}

// parseAge rejects anything but a non-negative integer.
func parseAge(text string) (int, bool) {
	age, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || age < 0 {
		return 0, false
	}
	return age, true
}

func builderSex(b *domain.ProfileBuilder) domain.Sex {
	if b.Sex == nil {
		return domain.Male
	}
	return *b.Sex
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
