package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"deafbot/internal/domain"
)

const profileColumns = `
	p.user_id, p.name, p.age, p.sex, p.hearing_level,
	p.location_displayed, p.location_actual, p.latitude, p.longitude,
	p.description, p.photos, p.visible,
	p.pref_age_lowest, p.pref_age_greatest, p.pref_sex, p.pref_hearing_levels, p.pref_max_distance`

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, p *domain.Profile) error {
	if p == nil || p.ID == 0 {
		return errors.New("CreateProfile: empty profile or profile.ID")
	}

	photos, err := json.Marshal(photosOrEmpty(p.Photos))
	if err != nil {
		return fmt.Errorf("failed to encode photos: %w", err)
	}
	levels, err := hearingLevelsColumn(p.Settings.SearchOptions.HearingLevels)
	if err != nil {
		return err
	}

	var lat, lon, ageLow, ageHigh, prefSex interface{}
	if c := p.Location.Coordinates; c != nil {
		lat, lon = c.Latitude, c.Longitude
	}
	opts := p.Settings.SearchOptions
	if opts.Age != nil {
		ageLow, ageHigh = opts.Age.Lowest, opts.Age.Greatest
	}
	if opts.Sex != nil {
		prefSex = string(*opts.Sex)
	}
	var maxDistance interface{}
	if opts.MaxDistance != nil {
		maxDistance = *opts.MaxDistance
	}

	const q = `
		INSERT INTO profiles (
			user_id, name, age, sex, hearing_level,
			location_displayed, location_actual, latitude, longitude,
			description, photos, visible,
			pref_age_lowest, pref_age_greatest, pref_sex, pref_hearing_levels, pref_max_distance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, q,
		p.ID, p.Name, p.Age, string(p.Sex), string(p.HearingLevel),
		p.Location.Displayed, p.Location.Actual, lat, lon,
		nullableString(p.Description), string(photos), p.Settings.Visible,
		ageLow, ageHigh, prefSex, levels, maxDistance,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id domain.UserID) (*domain.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.user_id = ?`
	p, err := scanProfile(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) HasProfile(ctx context.Context, id domain.UserID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE user_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}
	return exists, nil
}

func (r *ProfileRepository) UpdateName(ctx context.Context, id domain.UserID, name string) error {
	return r.updateFields(ctx, id, map[string]interface{}{"name": name})
}

func (r *ProfileRepository) UpdateAge(ctx context.Context, id domain.UserID, age int) error {
	return r.updateFields(ctx, id, map[string]interface{}{"age": age})
}

func (r *ProfileRepository) UpdateLocation(ctx context.Context, id domain.UserID, loc domain.Location) error {
	var lat, lon interface{}
	if loc.Coordinates != nil {
		lat, lon = loc.Coordinates.Latitude, loc.Coordinates.Longitude
	}
	return r.updateFields(ctx, id, map[string]interface{}{
		"location_displayed": loc.Displayed,
		"location_actual":    loc.Actual,
		"latitude":           lat,
		"longitude":          lon,
	})
}

func (r *ProfileRepository) UpdateHearingLevel(ctx context.Context, id domain.UserID, level domain.HearingLevel) error {
	return r.updateFields(ctx, id, map[string]interface{}{"hearing_level": string(level)})
}

// UpdateDescription clears the description when desc is nil.
func (r *ProfileRepository) UpdateDescription(ctx context.Context, id domain.UserID, desc *string) error {
	return r.updateFields(ctx, id, map[string]interface{}{"description": nullableString(desc)})
}

func (r *ProfileRepository) UpdatePhotos(ctx context.Context, id domain.UserID, photos []domain.PhotoID) error {
	data, err := json.Marshal(photosOrEmpty(photos))
	if err != nil {
		return fmt.Errorf("failed to encode photos: %w", err)
	}
	return r.updateFields(ctx, id, map[string]interface{}{"photos": string(data)})
}

var updatableColumns = map[string]bool{
	"name":               true,
	"age":                true,
	"hearing_level":      true,
	"location_displayed": true,
	"location_actual":    true,
	"latitude":           true,
	"longitude":          true,
	"description":        true,
	"photos":             true,
}

func (r *ProfileRepository) updateFields(ctx context.Context, id domain.UserID, fields map[string]interface{}) error {
	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+1)
	for col, v := range fields {
		if !updatableColumns[col] {
			return fmt.Errorf("updateFields: column %q is not updatable", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	q := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ?`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindCandidate is the SQL form of domain.SearchFilter.Matches. The viewer's
// view history is excluded through the views table rather than f.Excluded.
// It returns the oldest matching profile, or nil when nobody matches.
func (r *ProfileRepository) FindCandidate(ctx context.Context, f domain.SearchFilter) (*domain.Profile, error) {
	v := f.Viewer
	query := `SELECT ` + profileColumns + `
		FROM profiles p
		WHERE p.user_id <> ?
		  AND p.visible = 1
		  AND p.location_actual = ?
		  AND (p.pref_age_lowest IS NULL OR ? BETWEEN p.pref_age_lowest AND p.pref_age_greatest)
		  AND (p.pref_sex IS NULL OR p.pref_sex = ?)
		  AND (p.pref_hearing_levels IS NULL
		       OR json_array_length(p.pref_hearing_levels) = 0
		       OR EXISTS (SELECT 1 FROM json_each(p.pref_hearing_levels) WHERE value = ?))
		  AND p.user_id NOT IN (SELECT to_id FROM views WHERE from_id = ?)
	`
	args := []interface{}{v.ID, v.Location.Actual, v.Age, string(v.Sex), string(v.HearingLevel), v.ID}

	opts := v.Settings.SearchOptions
	if opts.Age != nil {
		query += " AND p.age BETWEEN ? AND ?"
		args = append(args, opts.Age.Lowest, opts.Age.Greatest)
	}
	if opts.Sex != nil {
		query += " AND p.sex = ?"
		args = append(args, string(*opts.Sex))
	}
	if len(opts.HearingLevels) > 0 {
		marks := make([]string, len(opts.HearingLevels))
		for i, l := range opts.HearingLevels {
			marks[i] = "?"
			args = append(args, string(l))
		}
		query += " AND p.hearing_level IN (" + strings.Join(marks, ", ") + ")"
	}

	query += " ORDER BY p.rowid LIMIT 1"

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) GetAllProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles p ORDER BY p.rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var res []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		p                      domain.Profile
		sex, level             string
		lat, lon               sql.NullFloat64
		desc, prefSex, levels  sql.NullString
		photos                 string
		ageLow, ageHigh, maxKm sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Age, &sex, &level,
		&p.Location.Displayed, &p.Location.Actual, &lat, &lon,
		&desc, &photos, &p.Settings.Visible,
		&ageLow, &ageHigh, &prefSex, &levels, &maxKm,
	)
	if err != nil {
		return nil, err
	}

	p.Sex = domain.Sex(sex)
	p.HearingLevel = domain.HearingLevel(level)
	p.Description = stringPtr(desc)
	if lat.Valid && lon.Valid {
		p.Location.Coordinates = &domain.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if err := json.Unmarshal([]byte(photos), &p.Photos); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}

	opts := &p.Settings.SearchOptions
	if ageLow.Valid && ageHigh.Valid {
		opts.Age = &domain.AgeRange{Lowest: int(ageLow.Int64), Greatest: int(ageHigh.Int64)}
	}
	if prefSex.Valid {
		s := domain.Sex(prefSex.String)
		opts.Sex = &s
	}
	if levels.Valid {
		if err := json.Unmarshal([]byte(levels.String), &opts.HearingLevels); err != nil {
			return nil, fmt.Errorf("decode hearing levels: %w", err)
		}
	}
	if maxKm.Valid {
		d := int(maxKm.Int64)
		opts.MaxDistance = &d
	}
	return &p, nil
}

func photosOrEmpty(photos []domain.PhotoID) []domain.PhotoID {
	if photos == nil {
		return []domain.PhotoID{}
	}
	return photos
}

// An empty set is stored as NULL, the same "no constraint" as an absent one.
func hearingLevelsColumn(levels []domain.HearingLevel) (interface{}, error) {
	if len(levels) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hearing levels: %w", err)
	}
	return string(data), nil
}
