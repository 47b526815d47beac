package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/maintenance"
)

// patternList collects repeated -test-pattern flags.
type patternList []string

func (p *patternList) String() string { return strings.Join(*p, ",") }

func (p *patternList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	_ = godotenv.Load(".env.local")

	var patterns patternList
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	retention := flag.Duration("retention", 7*24*time.Hour, "Keep ended records younger than this")
	dryRun := flag.Bool("dry-run", false, "Count matching rows only; no deletes")
	advisoryKey := flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall deadline")
	flag.Var(&patterns, "test-pattern", "LIKE pattern of test account emails to delete, e.g. '%@example.com' (repeatable)")
	flag.Parse()

	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	logger := logging.New(os.Stderr, os.Getenv("LOG_LEVEL"), true)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	report, err := maintenance.NewCleaner(db, logger).Run(ctx, maintenance.Options{
		Retention:         *retention,
		TestEmailPatterns: patterns,
		DryRun:            *dryRun,
		AdvisoryLockKey:   *advisoryKey,
	})
	if err != nil {
		fatalf("cleanup: %v", err)
	}

	fmt.Println(report.String())
	if *dryRun {
		fmt.Println("Dry run complete. No changes made.")
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
