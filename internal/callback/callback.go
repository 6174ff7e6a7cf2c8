// Package callback encodes the payload of inline keyboard buttons as CODE or
// CODE:ARG.
package callback

import (
	"fmt"
	"strings"

	"deafbot/internal/domain"
)

const separator = ":"

type Code string

const (
	EnterProfileEditingMode Code = "EPEM"
	EditProfileData         Code = "EPD"
	SetHearingLevel         Code = "SHR"
	LeaveEmptyDescription   Code = "LED"
	FinishEditing           Code = "FED"
)

type ProfileField string

const (
	FieldName         ProfileField = "Name"
	FieldAge          ProfileField = "Age"
	FieldCity         ProfileField = "City"
	FieldHearingLevel ProfileField = "HearingLevel"
	FieldDescription  ProfileField = "Description"
	FieldPhoto        ProfileField = "Photo"
)

func (f ProfileField) Valid() bool {
	switch f {
	case FieldName, FieldAge, FieldCity, FieldHearingLevel, FieldDescription, FieldPhoto:
		return true
	}
	return false
}

// Data is a decoded button payload. Field is set only for EPD, Level only for
// SHR.
type Data struct {
	Code  Code
	Field ProfileField
	Level domain.HearingLevel
}

type DecodeError struct {
	Payload string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode callback %q: %s", e.Payload, e.Reason)
}

func EnterEditMode() string { return string(EnterProfileEditingMode) }

func EditField(f ProfileField) string { return string(EditProfileData) + separator + string(f) }

func SetHearing(l domain.HearingLevel) string {
	return string(SetHearingLevel) + separator + string(l)
}

func LeaveDescriptionEmpty() string { return string(LeaveEmptyDescription) }

func Finish() string { return string(FinishEditing) }

func (d Data) Encode() string {
	switch d.Code {
	case EditProfileData:
		return EditField(d.Field)
	case SetHearingLevel:
		return SetHearing(d.Level)
	}
	return string(d.Code)
}

func Decode(payload string) (Data, error) {
	code, arg, hasArg := strings.Cut(payload, separator)

	switch Code(code) {
	case EnterProfileEditingMode, LeaveEmptyDescription, FinishEditing:
		if hasArg {
			return Data{}, &DecodeError{Payload: payload, Reason: "unexpected argument"}
		}
		return Data{Code: Code(code)}, nil
	case EditProfileData:
		f := ProfileField(arg)
		if !f.Valid() {
			return Data{}, &DecodeError{Payload: payload, Reason: "unknown profile field"}
		}
		return Data{Code: EditProfileData, Field: f}, nil
	case SetHearingLevel:
		l := domain.HearingLevel(arg)
		if !l.Valid() {
			return Data{}, &DecodeError{Payload: payload, Reason: "unknown hearing level"}
		}
		return Data{Code: SetHearingLevel, Level: l}, nil
	}
	return Data{}, &DecodeError{Payload: payload, Reason: "unknown code"}
}
