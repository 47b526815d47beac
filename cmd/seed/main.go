package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/config"
	"github.com/lacpa/lacpa-backend/internal/db"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/mail"
	"github.com/lacpa/lacpa-backend/internal/seeds"
)

func main() {
	_ = godotenv.Load(".env.local")
	file := flag.String("file", "seeds/admins.yaml", "YAML list of accounts to provision")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, !cfg.IsProduction())

	list, err := seeds.LoadAdmins(*file)
	if err != nil {
		fatalf("❌ %v", err)
	}

	d, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		fatalf("❌ %v", err)
	}
	defer db.Close()
	if err := auth.Init(d); err != nil {
		fatalf("❌ init schema: %v", err)
	}

	// Provisioned accounts skip the code flow, so nothing is ever mailed.
	svc, err := auth.NewService(auth.NewGormStores(d), mail.NewLogMailer(logger), logger, auth.OptionsFromConfig(cfg))
	if err != nil {
		fatalf("❌ %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := seeds.SeedAdmins(ctx, svc, logger, list)
	if err != nil {
		fatalf("❌ Seeding failed: %v", err)
	}
	fmt.Printf("✅ Seeded %d accounts (%d already present)\n", res.Created, res.Skipped)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
