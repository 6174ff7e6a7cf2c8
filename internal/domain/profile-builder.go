package domain

const (
	DefaultName     = "Не указано"
	DefaultLocation = "Москва"
)

// BuildingStep is the wizard step the builder is waiting input for.
type BuildingStep int

const (
	StepName BuildingStep = iota
	StepAge
	StepLocation
	StepSex
	StepMeetingPreferences
	StepHearingLevel
	StepDescription
	StepPhoto
)

func (s BuildingStep) Next() BuildingStep {
	if s >= StepPhoto {
		return StepPhoto
	}
	return s + 1
}

func (s BuildingStep) String() string {
	switch s {
	case StepName:
		return "Name"
	case StepAge:
		return "Age"
	case StepLocation:
		return "Location"
	case StepSex:
		return "Sex"
	case StepMeetingPreferences:
		return "MeetingPreferences"
	case StepHearingLevel:
		return "HearingLevel"
	case StepDescription:
		return "Description"
	case StepPhoto:
		return "Photo"
	}
	return "Unknown"
}

type ProfileBuilder struct {
	ID           UserID
	Name         *string
	Age          *int
	Sex          *Sex
	HearingLevel *HearingLevel
	Location     *Location
	Description  *string
	Photos       []PhotoID
	WantToMeet   *Sex
}

func NewProfileBuilder(id UserID) *ProfileBuilder {
	return &ProfileBuilder{ID: id}
}

func (b *ProfileBuilder) AddPhoto(id PhotoID) {
	b.Photos = append(b.Photos, id)
}

// Build never fails. Every unset field falls back to a default (name
// "Не указано", age 0, Male, CompletelyDeaf, Москва, visible), which means a
// wizard that skipped a step still produces a profile. Callers must drive the
// wizard to the photo step before calling Build.
func (b *ProfileBuilder) Build() Profile {
	p := Profile{
		ID:           b.ID,
		Name:         DefaultName,
		Sex:          Male,
		HearingLevel: CompletelyDeaf,
		Location:     Location{Displayed: DefaultLocation, Actual: DefaultLocation},
		Photos:       append([]PhotoID(nil), b.Photos...),
		Settings:     Settings{Visible: true},
	}
	if b.Name != nil && *b.Name != "" {
		p.Name = *b.Name
	}
	if b.Age != nil {
		p.Age = *b.Age
	}
	if b.Sex != nil {
		p.Sex = *b.Sex
	}
	if b.HearingLevel != nil {
		p.HearingLevel = *b.HearingLevel
	}
	if b.Location != nil {
		p.Location = *b.Location
	}
	if b.Description != nil {
		d := *b.Description
		p.Description = &d
	}
	if b.WantToMeet != nil {
		s := *b.WantToMeet
		p.Settings.SearchOptions.Sex = &s
	}
	return p
}
