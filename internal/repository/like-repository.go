package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deafbot/internal/domain"

	"github.com/google/uuid"
)

type LikeRepository struct {
	db *sql.DB
}

func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) AddLike(ctx context.Context, like *domain.Like) error {
	if like.ID == "" {
		like.ID = uuid.New().String()
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	const q = `INSERT INTO likes (id, from_id, to_id, message, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, like.ID, like.From, like.To, nullableString(like.Message), like.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}
	return nil
}

func (r *LikeRepository) FindLike(ctx context.Context, from, to domain.UserID) (*domain.Like, error) {
	const q = `
		SELECT id, from_id, to_id, message, created_at
		FROM likes
		WHERE from_id = ? AND to_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	var l domain.Like
	var msg sql.NullString
	err := r.db.QueryRowContext(ctx, q, from, to).Scan(&l.ID, &l.From, &l.To, &msg, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find like: %w", err)
	}
	l.Message = stringPtr(msg)
	return &l, nil
}

// DeleteLike removes one Like(from→to). It reports false, not an error, when
// there was nothing left to delete.
func (r *LikeRepository) DeleteLike(ctx context.Context, from, to domain.UserID) (bool, error) {
	const q = `
		DELETE FROM likes
		WHERE id = (
			SELECT id FROM likes
			WHERE from_id = ? AND to_id = ?
			ORDER BY created_at
			LIMIT 1
		)
	`
	res, err := r.db.ExecContext(ctx, q, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	return ra > 0, nil
}

// NextLiker returns the profile of whoever liked viewer most recently.
func (r *LikeRepository) NextLiker(ctx context.Context, viewer domain.UserID) (*domain.Profile, error) {
	q := `SELECT ` + profileColumns + `
		FROM likes l
		JOIN profiles p ON p.user_id = l.from_id
		WHERE l.to_id = ?
		ORDER BY l.created_at DESC, l.rowid DESC
		LIMIT 1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, q, viewer))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next liker: %w", err)
	}
	return p, nil
}

func (r *LikeRepository) CountLikesBetween(ctx context.Context, a, b domain.UserID) (int, error) {
	const q = `
		SELECT COUNT(*) FROM likes
		WHERE (from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)
	`
	var n int
	if err := r.db.QueryRowContext(ctx, q, a, b, b, a).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

func (r *LikeRepository) AddView(ctx context.Context, view *domain.View) error {
	if view.ID == "" {
		view.ID = uuid.New().String()
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now()
	}
	const q = `INSERT INTO views (id, from_id, to_id, liked, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, view.ID, view.From, view.To, view.Liked, view.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add view: %w", err)
	}
	return nil
}

func (r *LikeRepository) GetViewsBy(ctx context.Context, viewer domain.UserID) ([]domain.View, error) {
	const q = `
		SELECT id, from_id, to_id, liked, created_at
		FROM views
		WHERE from_id = ?
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, q, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to get views: %w", err)
	}
	defer rows.Close()

	var res []domain.View
	for rows.Next() {
		var v domain.View
		if err := rows.Scan(&v.ID, &v.From, &v.To, &v.Liked, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// Stats is a snapshot of table sizes for the admin /stats command.
type Stats struct {
	Users    int
	Profiles int
	Likes    int
	Views    int
}

func (r *LikeRepository) Stats(ctx context.Context) (Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM likes),
			(SELECT COUNT(*) FROM views)
	`
	var s Stats
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.Users, &s.Profiles, &s.Likes, &s.Views); err != nil {
		return Stats{}, fmt.Errorf("failed to collect stats: %w", err)
	}
	return s, nil
}
