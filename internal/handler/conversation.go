package handler

import (
	"context"
	"fmt"
	"html"

	"deafbot/internal/callback"
	"deafbot/internal/domain"
	"deafbot/internal/keyboard"
	"deafbot/internal/transport"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const (
	textPrivateOnly    = "Бот работает только в личных сообщениях"
	textUsernameNeeded = "Сожалею, но для работы с ботом нужно иметь <b>имя пользователя</b>\n\nУстановить его можно в настройках"
	textMenu           = "🏠 Меню"
	textActivityLost   = "🫠 По какой-то причине ваша предыдущая активность была утеряна"

	textGreeting       = "<b>Привет</b> 👋\n\nЧтобы начать поиск, необходимо сначала создать анкету. Как тебя зовут?"
	textNameTooLong    = "Имя <code>%s</code> слишком длинное %d/<b>%d</b>"
	textAskAge         = "Сколько тебе лет?"
	textAgeNotNumber   = "Возраст должен быть числом"
	textAskCity        = "В каком городе ты живёшь?"
	textCityNotFound   = "🕵🏻‍♂️ Города <b>%s</b> не существует"
	textGeocoderFailed = "😔 Не получилось найти город, попробуй ещё раз чуть позже"
	textAskSex         = "Ты парень или девушка?"
	textAskWantToMeet  = "Кого ты хочешь встретить?"
	textAskHearing     = "Какой у тебя уровень слуха?"
	textAskDescription = "Добавь описание для своей анкеты"
	textAskPhoto       = "Отправь свою фотографию, чтобы мы знали, как ты выглядишь"
	textProfileReady   = "Готово. Вот твоя анкета:"

	textWatchProfiles = "Смотрим анкеты"
	textNoSuggestion  = "Анкет, удовлетворяющих твоим критериям поиска, не найдено"
	textWatchLikes    = "Смотрим, кто тебя лайкнул"
	textNoLikes       = "🫥 Никто пока не лайкнул твою анкету"
	textLikesOver     = "Лайки закончились, включен режим поиска"
	textMutualLike    = "У вас взаимный лайк 👇"
	textIntroduction  = "Удачного знакомства - <a href=\"t.me/%s\">жми на меня</a>"
	textOfferExpired  = "Поздно, срок действия лайка уже истёк"
	textSomeoneLiked  = "✨ Тебя кто-то лайкнул. Посмотреть можно в разделе <b>лайки</b> в меню"

	textEditMode   = "✏ Редактирование анкеты"
	textNewProfile = "✨ Твоя новая анкета"
)

var editPrompts = map[callback.ProfileField]string{
	callback.FieldName:         "✒ Отправь своё имя",
	callback.FieldAge:          "📏 Отправь свой возраст",
	callback.FieldCity:         "🏘 Отправь свой город",
	callback.FieldHearingLevel: "👂 Выбери свой уровень слуха",
	callback.FieldDescription:  "📝 Придумай себе новое описание",
	callback.FieldPhoto:        "🖼 Отправь своё новое фото",
}

func nameTooLongText(e *domain.NameTooLongError) string {
	return fmt.Sprintf(textNameTooLong, html.EscapeString(e.Name), e.Length, domain.MaxNameLength)
}

func cityNotFoundText(name string) string {
	return fmt.Sprintf(textCityNotFound, html.EscapeString(name))
}

// send logs the failure itself; callers only need the ref when they track
// the message.
func (h *Handler) send(ctx context.Context, chatID int64, text string, opts transport.SendOptions) (transport.MessageRef, bool) {
	ref, err := h.tr.SendText(ctx, chatID, text, opts)
	if err != nil {
		h.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return transport.MessageRef{}, false
	}
	return ref, true
}

func (h *Handler) sendWithMarkup(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) bool {
	_, ok := h.send(ctx, chatID, text, transport.SendOptions{Markup: markup})
	return ok
}

func (h *Handler) sendHTML(ctx context.Context, chatID int64, text string) (transport.MessageRef, bool) {
	return h.send(ctx, chatID, text, transport.SendOptions{HTML: true})
}

func (h *Handler) sendMenu(ctx context.Context, chatID int64) {
	h.sendWithMarkup(ctx, chatID, textMenu, keyboard.Menu())
}

// sendProfile renders p as a photo album with the caption on the first photo
// and returns the ref of that first message.
func (h *Handler) sendProfile(ctx context.Context, chatID int64, p domain.Profile) (transport.MessageRef, bool) {
	photos := make([]string, 0, len(p.Photos))
	for _, id := range p.Photos {
		photos = append(photos, string(id))
	}
	if len(photos) == 0 {
		return h.send(ctx, chatID, p.Caption(), transport.SendOptions{})
	}

	ref, err := h.tr.SendMediaGroup(ctx, chatID, photos, p.Caption())
	if err != nil {
		h.logger.Error("Failed to send profile",
			zap.Int64("chat_id", chatID),
			zap.Int64("profile_id", int64(p.ID)),
			zap.Error(err))
		return transport.MessageRef{}, false
	}
	return ref, true
}

// sendOwnProfile renders the user's own profile with the edit button attached.
func (h *Handler) sendOwnProfile(ctx context.Context, chatID int64, p domain.Profile) {
	ref, ok := h.sendProfile(ctx, chatID, p)
	if !ok {
		return
	}
	if err := h.tr.EditReplyMarkup(ctx, ref, keyboard.EnterEditMode()); err != nil {
		h.logger.Error("Failed to attach edit button", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handler) deleteMessage(ctx context.Context, ref transport.MessageRef) {
	if ref.IsZero() {
		return
	}
	if err := h.tr.DeleteMessage(ctx, ref); err != nil {
		h.logger.Warn("Failed to delete message",
			zap.Int64("chat_id", ref.ChatID),
			zap.Int("message_id", ref.MessageID),
			zap.Error(err))
	}
}

// notify sends text to chatID in the background. Delivery is best effort and
// paced by the shared limiter.
func (h *Handler) notify(chatID int64, text string) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.limiter.Wait(h.ctx); err != nil {
			h.logger.Warn("Notification dropped", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		if _, err := h.tr.SendText(h.ctx, chatID, text, transport.SendOptions{HTML: true}); err != nil {
			h.logger.Warn("Failed to deliver notification", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}()
}
