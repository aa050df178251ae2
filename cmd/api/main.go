package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/Flora-Ebah/kairos-backend/internal/adapters/httpapi"
	"github.com/Flora-Ebah/kairos-backend/internal/app/ledger"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/config"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/wiring"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", os.Getenv("KAIROS_CONFIG"), "path to a YAML config file (env vars override it)")
	defaultActor := pflag.String("default-actor", "", "actor recorded when a request carries no "+httpapi.ActorHeader+" header")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log := logging.New(logging.Options{Service: "kairos-api", Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := wiring.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.AutoClose.Enabled {
		at, err := cfg.CloseAt()
		if err != nil {
			return err
		}
		closer := ledger.NewDailyCloser(app.Ledgers, at, log)
		closer.Idempotency = app.Idem
		closer.IdempotencyRetention = cfg.AutoClose.IdempotencyRetention
		go func() {
			if err := closer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorContext(ctx, "daily_closer_stopped", logging.Err(err))
			}
		}()
	}

	api := httpapi.NewServer(app.Ledgers, app.Checker, app.Resolver, app.Finance, app.Idem, app.Money, app.Clock, log)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{ActorMiddleware: httpapi.NewActorMiddleware(*defaultActor)})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "api_listening", "port", cfg.HTTP.Port, "backend", string(cfg.Storage.Backend), "timezone", cfg.Business.Timezone, "currency", app.Money.Code())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("api_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
