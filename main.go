package main

import (
	"database/sql"
	"flag"
	"log"

	"deafbot/traits/database"

	_ "github.com/mattn/go-sqlite3"
)

// Applies the schema to a database file without starting the bot.
func main() {
	dbPath := flag.String("db", "./deafbot.db", "path to SQLite DB")

	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	if err := database.CreateTables(db); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	log.Println("Migration finished.")
}
