package domain

import "strings"

const (
	SexMaleText   = "Парень"
	SexFemaleText = "Девушка"

	WantMaleText    = "Парня"
	WantFemaleText  = "Девушку"
	WantAnyoneText  = "Без разницы"
	LeaveEmptyText  = "Оставить пустым"
	LeaveEmptyToken = "LEAVE_EMPTY"
)

func ParseSex(text string) (Sex, bool) {
	switch strings.TrimSpace(text) {
	case SexMaleText, string(Male):
		return Male, true
	case SexFemaleText, string(Female):
		return Female, true
	}
	return "", false
}

// ParseWantToMeet returns a nil sex for "anyone".
func ParseWantToMeet(text string) (*Sex, bool) {
	switch strings.TrimSpace(text) {
	case WantMaleText:
		s := Male
		return &s, true
	case WantFemaleText:
		s := Female
		return &s, true
	case WantAnyoneText:
		return nil, true
	}
	return nil, false
}

// ParseHearingLevel accepts the gendered labels of either sex and the enum
// names themselves.
func ParseHearingLevel(text string) (HearingLevel, bool) {
	text = strings.TrimSpace(text)
	for _, l := range HearingLevels {
		if text == string(l) || text == l.Label(Male) || text == l.Label(Female) {
			return l, true
		}
	}
	return "", false
}

func IsLeaveEmpty(text string) bool {
	text = strings.TrimSpace(text)
	return text == LeaveEmptyText || text == LeaveEmptyToken
}
