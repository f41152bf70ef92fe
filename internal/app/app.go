package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/alerting"
	"github.com/vegas-max/Titan2.0/internal/chains"
	"github.com/vegas-max/Titan2.0/internal/config"
	"github.com/vegas-max/Titan2.0/internal/ethrpc"
	"github.com/vegas-max/Titan2.0/internal/quote"
	"github.com/vegas-max/Titan2.0/internal/scheduler"
	"github.com/vegas-max/Titan2.0/internal/service"
	"github.com/vegas-max/Titan2.0/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newQuoteProvider() (quote.Provider, error) {
	switch a.Config.Quotes.Provider {
	case "lifi":
		return quote.NewLiFi(quote.LiFiOptions{
			BaseURL:     a.Config.Quotes.LiFiBaseURL,
			APIKey:      a.Config.Quotes.LiFiAPIKey,
			NotionalUSD: a.Config.Quotes.NotionalUSD,
			Timeout:     a.Config.Quotes.RequestTimeout,
			RatePerSec:  a.Config.Quotes.RatePerSec,
			UserAgent:   a.Config.Quotes.UserAgent,
		}, a.Logger), nil
	case "synthetic", "":
		return quote.NewSynthetic(), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", a.Config.Quotes.Provider)
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newRegistry() *chains.Registry {
	return chains.NewRegistry(a.Config.Endpoints())
}

func (a *App) newTVLReader(registry *chains.Registry) (*ethrpc.Reader, func()) {
	manager := ethrpc.NewManager(registry, a.Logger)
	reader := ethrpc.NewReader(manager, a.Config.Server.RequestTimeout, a.Logger)
	return reader, manager.Close
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(sched *scheduler.Scheduler, store *storage.Store) (*service.Service, error) {
	provider, err := a.newQuoteProvider()
	if err != nil {
		return nil, err
	}

	var scanStore storage.ScanStore
	if store != nil {
		scanStore = store
	}

	return service.New(a.Config, sched, provider, scanStore, a.newNotifier(), a.Logger), nil
}

// Run executes the long-running scan loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc, err := a.newService(sched, store)
	if err != nil {
		return err
	}

	a.Logger.Info().Msg("starting scan service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scan service stopped")
	return nil
}

// ExportOptions hold parameters for exporting scan history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	ScanID int64
}

// SizeOptions configure a one-shot sizing run.
type SizeOptions struct {
	ChainID      uint64
	TokenAddress string
	Lender       string
	Amount       string
	Decimals     uint8
}
