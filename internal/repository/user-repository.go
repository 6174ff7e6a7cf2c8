package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"deafbot/internal/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// AddUser inserts the user record unless one already exists for the id.
func (r *UserRepository) AddUser(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == 0 {
		return errors.New("AddUser: empty user or user.ID")
	}
	const q = `
		INSERT OR IGNORE INTO users (user_id, first_name, last_name, username, language_code, join_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, q,
		user.ID,
		user.FirstName,
		nullableString(user.LastName),
		user.Username,
		nullableString(user.LanguageCode),
		user.JoinDate.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	const q = `
		SELECT user_id, first_name, last_name, username, language_code, join_date
		FROM users
		WHERE user_id = ?
	`
	var u domain.User
	var lastName, lang sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.FirstName, &lastName, &u.Username, &lang, &u.JoinDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.LastName = stringPtr(lastName)
	u.LanguageCode = stringPtr(lang)
	return &u, nil
}

// GetAllUserIDs lists every user that has finished the wizard.
func (r *UserRepository) GetAllUserIDs(ctx context.Context) ([]domain.UserID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.UserID
	for rows.Next() {
		var id domain.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
