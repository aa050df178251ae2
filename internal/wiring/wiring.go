// Package wiring assembles services and adapters for the selected storage backend.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	memdriverdir "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/driverdir"
	memevents "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/events"
	memexpensestore "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/expensestore"
	memidempotency "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/idempotency"
	memledgerrepo "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/ledgerrepo"
	memtripstore "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/tripstore"
	mongoclient "github.com/Flora-Ebah/kairos-backend/internal/adapters/mongo"
	mongoledgerrepo "github.com/Flora-Ebah/kairos-backend/internal/adapters/mongo/ledgerrepo"
	"github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres"
	pgdriverdir "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/driverdir"
	pgexpensestore "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/expensestore"
	pgidempotency "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/idempotency"
	pgledgerrepo "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/ledgerrepo"
	pgtripstore "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/tripstore"
	"github.com/Flora-Ebah/kairos-backend/internal/adapters/rabbitmq"
	"github.com/Flora-Ebah/kairos-backend/internal/app/finance"
	"github.com/Flora-Ebah/kairos-backend/internal/app/identity"
	"github.com/Flora-Ebah/kairos-backend/internal/app/ledger"
	"github.com/Flora-Ebah/kairos-backend/internal/app/reconciliation"
	platformclock "github.com/Flora-Ebah/kairos-backend/internal/platform/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/config"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/currency"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/idempotency"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

// App holds the wired services. Close releases every connection opened by Open.
type App struct {
	Clock    clock.Clock
	Money    currency.Converter
	Ledgers  *ledger.Service
	Checker  *reconciliation.Checker
	Resolver *identity.Resolver
	Finance  *finance.Engine
	Idem     idempotency.Store

	cleanup []func()
}

func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

type stores struct {
	ledgers     ledgerrepo.Repository
	primary     driverdir.PrimaryStore
	specialized driverdir.SpecializedStore
	trips       tripstore.Store
	expenses    expensestore.Store
	idem        idempotency.Store
}

// Open connects the configured backend and event publisher and builds the services.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	money, err := currency.New(cfg.Business.Currency)
	if err != nil {
		return nil, err
	}
	app := &App{Clock: platformclock.NewSystemClock(loc), Money: money}

	st, err := app.openStores(ctx, cfg, loc, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	var publisher events.Publisher = memevents.Discard{}
	if cfg.Events.AMQPURL != "" {
		client, err := rabbitmq.Connect(cfg.Events.AMQPURL, cfg.Events.Exchange, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		app.cleanup = append(app.cleanup, client.Close)
		publisher = rabbitmq.NewPublisher(client)
		log.InfoContext(ctx, "ledger_events_enabled", "exchange", cfg.Events.Exchange)
	}

	app.Idem = st.idem
	app.Ledgers = ledger.NewService(st.ledgers, publisher, app.Clock, log)
	app.Checker = reconciliation.NewChecker(st.ledgers, publisher, app.Clock, log)
	app.Resolver = identity.NewResolver(st.primary, st.specialized, log)
	app.Finance = finance.NewEngine(st.ledgers, st.trips, st.expenses, app.Resolver, app.Clock, log, finance.Options{
		CollaboratorTimeout: cfg.Finance.CollaboratorTimeout,
		DiagnosticWindow:    cfg.Finance.DiagnosticWindow,
		FleetParallelism:    cfg.Finance.FleetParallelism,
	})
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config, loc *time.Location, log *slog.Logger) (stores, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres, config.BackendMongo:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		a.cleanup = append(a.cleanup, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return stores{}, fmt.Errorf("migrate postgres: %w", err)
		}
		st := stores{
			ledgers:     pgledgerrepo.NewRepo(pool, loc),
			primary:     pgdriverdir.NewPrimaryStore(pool),
			specialized: pgdriverdir.NewSpecializedStore(pool),
			trips:       pgtripstore.NewStore(pool),
			expenses:    pgexpensestore.NewStore(pool),
			idem:        pgidempotency.NewStore(pool),
		}
		if cfg.Storage.Backend == config.BackendMongo {
			client, err := mongoclient.Connect(ctx, cfg.Storage.MongoURI)
			if err != nil {
				return stores{}, fmt.Errorf("open mongo: %w", err)
			}
			a.cleanup = append(a.cleanup, func() {
				dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(dctx)
			})
			repo := mongoledgerrepo.NewRepo(client.Database(cfg.Storage.MongoDatabase), loc)
			if err := repo.Migrate(ctx); err != nil {
				return stores{}, fmt.Errorf("migrate mongo: %w", err)
			}
			st.ledgers = repo
		}
		log.InfoContext(ctx, "storage_opened", "backend", string(cfg.Storage.Backend))
		return st, nil
	default:
		log.WarnContext(ctx, "storage_opened", "backend", string(config.BackendMemory), "note", "state is lost on restart")
		return stores{
			ledgers:     memledgerrepo.NewRepo(),
			primary:     memdriverdir.NewPrimaryStore(),
			specialized: memdriverdir.NewSpecializedStore(),
			trips:       memtripstore.NewStore(),
			expenses:    memexpensestore.NewStore(),
			idem:        memidempotency.NewStore(),
		}, nil
	}
}
