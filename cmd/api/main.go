package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/parser"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/repo"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-passbook-go/pkg/utilities"
)

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-passbook-go")

	cfg, err := setting.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("passbook settings: %v", err)
	}
	verifier, err := oidc.NewVerifier(oidc.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("auth: %v", err)
	}

	ids := utilities.IDGeneratorFromEnv()
	store, closeStore := openStore(sugar, cfg, ids)
	defer closeStore()

	svc, err := passbook.NewService(cfg, parser.Default(sugar), store, sugar)
	if err != nil {
		sugar.Fatalf("passbook service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr: addr,
		Handler: router.RegisterRoutes(sugar, router.Deps{
			Passbook:  passbook.NewHandler(svc, sugar),
			Settings:  setting.NewHandler(cfg, sugar),
			Verifier:  verifier,
			AdminRole: cfg.AdminRole,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running", "addr", addr, "supportedTypeNames", cfg.SupportedTypeNames)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// openStore selects the record store from STORE_DRIVER (postgres by default).
func openStore(sugar *zap.SugaredLogger, cfg setting.Config, ids *utilities.IDGenerator) (passbook.Store, func()) {
	if os.Getenv("STORE_DRIVER") == "memory" {
		sugar.Warn("using in-memory passbook store; records are lost on exit")
		return repo.NewMemStore(ids), func() {}
	}

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	r := repo.NewRepo(db, ids)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.EnsureTable(ctx, cfg.Table, false); err != nil {
		db.Close()
		sugar.Fatalf("ensure table %s: %v", cfg.Table, err)
	}
	return r, func() { db.Close() }
}
