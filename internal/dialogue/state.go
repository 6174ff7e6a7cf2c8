// Package dialogue holds the per-user conversation state. States live in
// process memory only and are lost on restart.
package dialogue

import (
	"fmt"

	"deafbot/internal/callback"
	"deafbot/internal/domain"
	"deafbot/internal/transport"

	"github.com/tiendc/go-deepcopy"
)

// State is one of Idle, CreatingProfile, Browsing, BrowsingLikes or
// EditingField. A transition always replaces the whole value.
type State interface {
	Name() string
}

type Idle struct{}

type CreatingProfile struct {
	Builder *domain.ProfileBuilder
	Step    domain.BuildingStep
}

type Browsing struct {
	Data SearchData
}

type BrowsingLikes struct {
	Data SearchData
}

type EditingField struct {
	Field  callback.ProfileField
	Origin Origin
}

func (Idle) Name() string            { return "Idle" }
func (CreatingProfile) Name() string { return "CreatingProfile" }
func (Browsing) Name() string        { return "Browsing" }
func (BrowsingLikes) Name() string   { return "BrowsingLikes" }
func (EditingField) Name() string    { return "EditingField" }

// SearchData is what browsing needs between two button presses: a snapshot of
// the viewer's profile and the candidate currently on screen.
type SearchData struct {
	Viewer    domain.Profile
	Candidate domain.UserID
}

// NewSearchData snapshots viewer so later edits to the caller's copy do not
// leak into the stored state.
func NewSearchData(viewer domain.Profile, candidate domain.UserID) (SearchData, error) {
	var snapshot domain.Profile
	if err := deepcopy.Copy(&snapshot, &viewer); err != nil {
		return SearchData{}, fmt.Errorf("snapshot viewer profile: %w", err)
	}
	return SearchData{Viewer: snapshot, Candidate: candidate}, nil
}

// Origin locates the messages an edit has to clean up once the new value is
// accepted. Prompts holds rejected replies and the error prompts answering
// them, in send order.
type Origin struct {
	CallbackID string
	Anchor     transport.MessageRef
	Prompts    []transport.MessageRef
}
