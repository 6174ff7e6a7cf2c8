package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase opens the SQLite database and makes sure the schema exists.
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := CreateTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// CreateTables creates all necessary tables
func CreateTables(db *sql.DB) error {
	tables := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"users", createUsersTable},
		{"profiles", createProfilesTable},
		{"likes", createLikesTable},
		{"views", createViewsTable},
	}

	for _, table := range tables {
		log.Printf("Creating table: %s", table.name)
		if err := table.fn(db); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}

	log.Println("All tables created successfully")
	return nil
}

func createUsersTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS users (
		user_id       INTEGER PRIMARY KEY,
		first_name    TEXT NOT NULL,
		last_name     TEXT,
		username      TEXT NOT NULL,
		language_code TEXT,
		join_date     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(stmt)
	return err
}

// Search preferences are nullable columns: NULL means "no constraint".
// pref_hearing_levels holds a JSON array so the candidate query can use json_each.
func createProfilesTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id             INTEGER PRIMARY KEY,
		name                TEXT NOT NULL,
		age                 INTEGER NOT NULL,
		sex                 TEXT NOT NULL,
		hearing_level       TEXT NOT NULL,
		location_displayed  TEXT NOT NULL,
		location_actual     TEXT NOT NULL,
		latitude            REAL,
		longitude           REAL,
		description         TEXT,
		photos              TEXT NOT NULL DEFAULT '[]',
		visible             INTEGER NOT NULL DEFAULT 1,
		pref_age_lowest     INTEGER,
		pref_age_greatest   INTEGER,
		pref_sex            TEXT,
		pref_hearing_levels TEXT,
		pref_max_distance   INTEGER,
		created_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_location ON profiles(location_actual, visible);
	CREATE TRIGGER IF NOT EXISTS trg_profiles_updated_at
	AFTER UPDATE ON profiles
	FOR EACH ROW
	WHEN NEW.updated_at = OLD.updated_at
	BEGIN
	  UPDATE profiles SET updated_at = CURRENT_TIMESTAMP WHERE user_id = NEW.user_id;
	END;
	`
	_, err := db.Exec(stmt)
	return err
}

func createLikesTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS likes (
		id         TEXT PRIMARY KEY,
		from_id    INTEGER NOT NULL,
		to_id      INTEGER NOT NULL,
		message    TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_likes_to ON likes(to_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_likes_pair ON likes(from_id, to_id);
	`
	_, err := db.Exec(stmt)
	return err
}

func createViewsTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS views (
		id         TEXT PRIMARY KEY,
		from_id    INTEGER NOT NULL,
		to_id      INTEGER NOT NULL,
		liked      INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_views_from ON views(from_id, to_id);
	`
	_, err := db.Exec(stmt)
	return err
}
