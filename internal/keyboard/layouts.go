package keyboard

import (
	"deafbot/internal/callback"
	"deafbot/internal/domain"

	"github.com/go-telegram/bot/models"
)

const (
	SearchButton  = "🚀 Поиск"
	ProfileButton = "⭐ Профиль"
	LikesButton   = "📩 Лайки"

	LikeButton    = "❤️"
	DislikeButton = "👎"
	MenuButton    = "🏠"

	LocationButton = "📍 Местоположение"

	EditButton   = "✏ Редактировать"
	FinishButton = "Закончить"
)

var fieldButtons = []struct {
	text  string
	field callback.ProfileField
}{
	{"✒ Имя", callback.FieldName},
	{"📏 Возраст", callback.FieldAge},
	{"🏘 Город", callback.FieldCity},
	{"👂 Уровень слуха", callback.FieldHearingLevel},
	{"📝 Описание", callback.FieldDescription},
	{"🖼 Фото", callback.FieldPhoto},
}

func Menu() *models.ReplyKeyboardMarkup {
	return NewReplyKeyboard().AddRow(SearchButton, ProfileButton, LikesButton).Build()
}

func LookingAtProfiles() *models.ReplyKeyboardMarkup {
	return NewReplyKeyboard().AddRow(LikeButton, DislikeButton, MenuButton).Build()
}

func SelectSex() *models.ReplyKeyboardMarkup {
	return NewReplyKeyboard().AddRow(domain.SexMaleText, domain.SexFemaleText).OneTime().Build()
}

func SelectWantToMeet() *models.ReplyKeyboardMarkup {
	return NewReplyKeyboard().
		AddRow(domain.WantMaleText, domain.WantFemaleText).
		AddRow(domain.WantAnyoneText).
		OneTime().
		Build()
}

func SelectHearingLevel(sex domain.Sex) *models.ReplyKeyboardMarkup {
	kb := NewReplyKeyboard().OneTime()
	for _, l := range domain.HearingLevels {
		kb.AddRow(l.Label(sex))
	}
	return kb.Build()
}

// RequestLocation lets the user share a point instead of typing a city.
func RequestLocation() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard:        [][]models.KeyboardButton{{{Text: LocationButton, RequestLocation: true}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func LeaveEmpty() *models.ReplyKeyboardMarkup {
	return NewReplyKeyboard().AddRow(domain.LeaveEmptyText).OneTime().Build()
}

// EnterEditMode is attached under a rendered own profile.
func EnterEditMode() *models.InlineKeyboardMarkup {
	return NewKeyboard().AddRow(NewInlineButton(EditButton, callback.EnterEditMode())).Build()
}

func EditProfile() *models.InlineKeyboardMarkup {
	kb := NewKeyboard()
	for _, b := range fieldButtons {
		kb.AddRow(NewInlineButton(b.text, callback.EditField(b.field)))
	}
	kb.AddRow(NewInlineButton(FinishButton, callback.Finish()))
	return kb.Build()
}

func SetHearingLevel(sex domain.Sex) *models.InlineKeyboardMarkup {
	kb := NewKeyboard()
	for _, l := range domain.HearingLevels {
		kb.AddRow(NewInlineButton(l.Label(sex), callback.SetHearing(l)))
	}
	return kb.Build()
}

func LeaveDescriptionEmpty() *models.InlineKeyboardMarkup {
	return NewKeyboard().AddRow(NewInlineButton(domain.LeaveEmptyText, callback.LeaveDescriptionEmpty())).Build()
}
