// internal/db/db.go
package db

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"
)

// Open connects to postgres and verifies the connection.
func Open(postgresURL string) *sql.DB {
	conn, err := sql.Open("postgres", postgresURL)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}

	if err = conn.Ping(); err != nil {
		log.Fatalf("failed to ping DB: %v", err)
	}

	log.Println("✅ Connected to database")
	return conn
}
