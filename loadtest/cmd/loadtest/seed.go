package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

// runSeed provisions participant profiles directly in Postgres. Profile
// registration belongs to the platform edge, not the engine, so the load
// test creates its simulated participants the same way the edge would:
// by inserting rows. Ids are deterministic (lt-000000, lt-000001, ...) so
// the scenarios can address the same participants.
func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dsn := fs.String("dsn", "postgres://localhost/roulette?sslmode=disable", "Postgres DSN")
	count := fs.Int("count", 1000, "Number of participant profiles to create")
	language := fs.String("language", "en", "Profile language for all seeded participants")
	fs.Parse(args)

	fmt.Printf("Seeding %d participant profiles (language=%s)\n", *count, *language)

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "begin: %v\n", err)
		os.Exit(1)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO participants (id, status, language, age_group, country)
		VALUES ($1, 'idle', $2, '18-25', 'us')
		ON CONFLICT (id) DO UPDATE SET status = 'idle'`)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *count; i++ {
		if _, err := stmt.Exec(participantID(i), *language); err != nil {
			fmt.Fprintf(os.Stderr, "insert %s: %v\n", participantID(i), err)
			os.Exit(1)
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		fmt.Fprintf(os.Stderr, "commit: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d profiles.\n", *count)
}
