// Package matching implements candidate suggestion and the like/match
// protocol on top of the profile and like stores.
package matching

import (
	"context"
	"fmt"

	"deafbot/internal/domain"
)

type ProfileStore interface {
	GetProfile(ctx context.Context, id domain.UserID) (*domain.Profile, error)
	FindCandidate(ctx context.Context, f domain.SearchFilter) (*domain.Profile, error)
}

type LikeStore interface {
	AddLike(ctx context.Context, like *domain.Like) error
	FindLike(ctx context.Context, from, to domain.UserID) (*domain.Like, error)
	DeleteLike(ctx context.Context, from, to domain.UserID) (bool, error)
	NextLiker(ctx context.Context, viewer domain.UserID) (*domain.Profile, error)
	AddView(ctx context.Context, view *domain.View) error
	GetViewsBy(ctx context.Context, viewer domain.UserID) ([]domain.View, error)
}

type MatchResult int

const (
	DontMatch MatchResult = iota
	Match
)

func (r MatchResult) String() string {
	if r == Match {
		return "Match"
	}
	return "DontMatch"
}

type Matcher struct {
	profiles ProfileStore
	likes    LikeStore
}

func NewMatcher(profiles ProfileStore, likes LikeStore) *Matcher {
	return &Matcher{profiles: profiles, likes: likes}
}

// NextSuggestion returns the next candidate for viewer, or nil when there is
// nobody left.
func (m *Matcher) NextSuggestion(ctx context.Context, viewer domain.Profile) (*domain.Profile, error) {
	views, err := m.likes.GetViewsBy(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}
	c, err := m.profiles.FindCandidate(ctx, domain.NewSearchFilter(viewer, views))
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	return c, nil
}

// NextLikedMe returns the profile behind the newest pending like toward
// viewer, or nil.
func (m *Matcher) NextLikedMe(ctx context.Context, viewer domain.UserID) (*domain.Profile, error) {
	p, err := m.likes.NextLiker(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("find liker: %w", err)
	}
	return p, nil
}

// CheckForMatch must run before from's own like is written.
func (m *Matcher) CheckForMatch(ctx context.Context, from, to domain.UserID) (MatchResult, error) {
	like, err := m.likes.FindLike(ctx, to, from)
	if err != nil {
		return DontMatch, fmt.Errorf("check for match: %w", err)
	}
	if like == nil {
		return DontMatch, nil
	}
	return Match, nil
}

func (m *Matcher) Like(ctx context.Context, viewer, candidate domain.UserID) error {
	if err := m.likes.AddLike(ctx, &domain.Like{From: viewer, To: candidate}); err != nil {
		return fmt.Errorf("like: %w", err)
	}
	if err := m.likes.AddView(ctx, &domain.View{From: viewer, To: candidate, Liked: true}); err != nil {
		return fmt.Errorf("like: %w", err)
	}
	return nil
}

func (m *Matcher) Skip(ctx context.Context, viewer, candidate domain.UserID) error {
	if err := m.likes.AddView(ctx, &domain.View{From: viewer, To: candidate, Liked: false}); err != nil {
		return fmt.Errorf("skip: %w", err)
	}
	return nil
}

// ConsumeMatch deletes Like(b→a), the like that made the match, and records
// a's view of b. Like(a→b) is never written. It returns false when the like
// was already gone; the caller must not introduce the pair in that case.
func (m *Matcher) ConsumeMatch(ctx context.Context, a, b domain.UserID) (bool, error) {
	deleted, err := m.likes.DeleteLike(ctx, b, a)
	if err != nil {
		return false, fmt.Errorf("consume match: %w", err)
	}
	if err := m.likes.AddView(ctx, &domain.View{From: a, To: b, Liked: true}); err != nil {
		return deleted, fmt.Errorf("consume match: %w", err)
	}
	return deleted, nil
}

// Dismiss is a skip in the liked-me queue: Like(liker→viewer) goes away
// without a match.
func (m *Matcher) Dismiss(ctx context.Context, viewer, liker domain.UserID) error {
	if _, err := m.likes.DeleteLike(ctx, liker, viewer); err != nil {
		return fmt.Errorf("dismiss: %w", err)
	}
	if err := m.likes.AddView(ctx, &domain.View{From: viewer, To: liker, Liked: false}); err != nil {
		return fmt.Errorf("dismiss: %w", err)
	}
	return nil
}
