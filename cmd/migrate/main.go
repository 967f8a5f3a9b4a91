// Command migrate copies passbook rows from the legacy table, whose
// effective_date column holds a time-based UUID, into the current table with
// a plain timestamp. Run it once, offline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/repo"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/utilities"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := setting.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "passbook settings: %v\n", err)
		return 2
	}

	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	from := flags.String("from", cfg.LegacyTable, "legacy table to read")
	to := flags.String("to", cfg.Table, "table to write")
	dryRun := flags.Bool("dry-run", false, "convert rows without writing them")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if *from == *to {
		fmt.Fprintf(os.Stderr, "--from and --to must differ\n")
		return 2
	}

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Errorf("db connect: %v", err)
		return 1
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repo.NewRepo(db, utilities.IDGeneratorFromEnv())
	if !*dryRun {
		if err := store.EnsureTable(ctx, *to, false); err != nil {
			sugar.Errorf("ensure table %s: %v", *to, err)
			return 1
		}
	}

	stats, err := passbook.NewMigrator(store, *from, *to, *dryRun, sugar).Run(ctx)
	if err != nil {
		sugar.Errorf("migration aborted: %v", err)
		return 1
	}
	if stats.Failed > 0 {
		return 1
	}
	return 0
}
