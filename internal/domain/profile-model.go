package domain

import (
	"fmt"
	"unicode/utf8"
)

const MaxNameLength = 25

type Sex string

const (
	Male   Sex = "Male"
	Female Sex = "Female"
)

func (s Sex) Valid() bool {
	return s == Male || s == Female
}

type HearingLevel string

const (
	CompletelyDeaf  HearingLevel = "CompletelyDeaf"
	HearingImpaired HearingLevel = "HearingImpaired"
	Hearing         HearingLevel = "Hearing"
)

var HearingLevels = []HearingLevel{CompletelyDeaf, HearingImpaired, Hearing}

func (l HearingLevel) Valid() bool {
	switch l {
	case CompletelyDeaf, HearingImpaired, Hearing:
		return true
	}
	return false
}

// Label renders the level the way a person of the given sex would describe
// themselves.
func (l HearingLevel) Label(sex Sex) string {
	female := sex == Female
	switch l {
	case CompletelyDeaf:
		if female {
			return "Глухая"
		}
		return "Глухой"
	case HearingImpaired:
		if female {
			return "Слабослышащая"
		}
		return "Слабослышащий"
	case Hearing:
		if female {
			return "Слышащая"
		}
		return "Слышащий"
	}
	return string(l)
}

type PhotoID string

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Location keeps the name shown to people apart from the normalized name used
// to bucket candidates.
type Location struct {
	Displayed   string
	Actual      string
	Coordinates *Coordinates
}

type AgeRange struct {
	Lowest   int
	Greatest int
}

func (r AgeRange) Contains(age int) bool {
	return age >= r.Lowest && age <= r.Greatest
}

// SearchOptions are the owner's preferences toward other people. A nil field
// (or an empty HearingLevels) imposes no constraint. MaxDistance is stored
// but not used for matching.
type SearchOptions struct {
	Age           *AgeRange
	Sex           *Sex
	HearingLevels []HearingLevel
	MaxDistance   *int
}

// Accepts reports whether p satisfies these preferences.
func (o SearchOptions) Accepts(p Profile) bool {
	if o.Age != nil && !o.Age.Contains(p.Age) {
		return false
	}
	if o.Sex != nil && *o.Sex != p.Sex {
		return false
	}
	if len(o.HearingLevels) > 0 {
		found := false
		for _, l := range o.HearingLevels {
			if l == p.HearingLevel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type Settings struct {
	Visible       bool
	SearchOptions SearchOptions
}

type Profile struct {
	ID           UserID
	Name         string
	Age          int
	Sex          Sex
	HearingLevel HearingLevel
	Location     Location
	Photos       []PhotoID
	Description  *string
	Settings     Settings
}

func (p Profile) Caption() string {
	caption := fmt.Sprintf("%s, %d, %s, %s", p.Name, p.Age, p.Location.Displayed, p.HearingLevel.Label(p.Sex))
	if p.Description != nil && *p.Description != "" {
		caption += "\n\n📝 " + *p.Description
	}
	return caption
}

type NameTooLongError struct {
	Name   string
	Length int
}

func (e *NameTooLongError) Error() string {
	return fmt.Sprintf("name is too long: %d/%d", e.Length, MaxNameLength)
}

// ValidateName counts characters, not bytes. Empty names are allowed.
func ValidateName(name string) error {
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return &NameTooLongError{Name: name, Length: n}
	}
	return nil
}
