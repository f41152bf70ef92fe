package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vegas-max/Titan2.0/internal/alerting"
	"github.com/vegas-max/Titan2.0/internal/config"
	"github.com/vegas-max/Titan2.0/internal/matrix"
	"github.com/vegas-max/Titan2.0/internal/quote"
	"github.com/vegas-max/Titan2.0/internal/ranker"
	"github.com/vegas-max/Titan2.0/internal/scheduler"
	"github.com/vegas-max/Titan2.0/internal/scoring"
	"github.com/vegas-max/Titan2.0/internal/storage"
)

// Service orchestrates matrix loading, quoting, scoring, persistence, and
// alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	provider  quote.Provider
	store     storage.ScanStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	matrixPath  string
	rankOpts    ranker.Options
	workers     int
	alertsOn    bool
	alertMinTar float64
	cooldown    time.Duration
	locker      storage.AdvisoryLocker
	lockKey     int64

	mu        sync.RWMutex
	latest    *ranker.Result
	latestAt  time.Time
	lastAlert time.Time
}

// New constructs the scanning service. The store and notifier may be nil, in
// which case persistence and alerting are skipped.
func New(cfg *config.Config, sched *scheduler.Scheduler, provider quote.Provider, store storage.ScanStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		provider:  provider,
		store:     store,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),

		matrixPath: cfg.Matrix.Path,
		rankOpts: ranker.Options{
			MinTarScore: cfg.Scoring.MinTarScore,
			TopN:        cfg.Scoring.TopN,
		},
		workers:     cfg.Scoring.Workers,
		alertsOn:    cfg.Alerting.Enabled,
		alertMinTar: cfg.Alerting.MinTarScore,
		cooldown:    cfg.Alerting.Cooldown,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the periodic scan loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick executes one scheduled scan, skipping the tick when another
// instance holds the advisory lock.
func (s *Service) ProcessTick(ctx context.Context, tickAt time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tickAt).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Scan(ctx, tickAt)
	return err
}

// Scan runs the full pipeline once: load the route matrix, quote and score
// every route, rank, persist, and alert.
func (s *Service) Scan(ctx context.Context, scannedAt time.Time) (ranker.Result, error) {
	records, err := matrix.Load(s.matrixPath, s.logger)
	if err != nil {
		return ranker.Result{}, fmt.Errorf("load route matrix: %w", err)
	}

	scored := s.scoreRoutes(ctx, records)
	result := ranker.Rank(scored, s.rankOpts)

	s.mu.Lock()
	s.latest = &result
	s.latestAt = scannedAt
	s.mu.Unlock()

	s.logger.Info().Time("scanned_at", scannedAt).
		Int("total", result.TotalScanned).
		Int("qualifying", result.Qualifying).
		Float64("mean_tar", result.MeanTarScore).
		Msg("scan complete")

	if s.store != nil {
		if err := s.persistScan(ctx, scannedAt, result); err != nil {
			s.logger.Error().Err(err).Time("scanned_at", scannedAt).Msg("failed to persist scan")
		}
	}

	s.maybeAlert(ctx, scannedAt, result)

	return result, nil
}

// Latest returns the most recent in-memory scan result, if any.
func (s *Service) Latest() (ranker.Result, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return ranker.Result{}, time.Time{}, false
	}
	return *s.latest, s.latestAt, true
}

// scoreRoutes quotes and scores all routes through a worker pool. Routes whose
// quote fails are dropped from the scan with a warning.
func (s *Service) scoreRoutes(ctx context.Context, records []matrix.RouteRecord) []ranker.ScoredRoute {
	workers := s.workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		workers = 1
	}

	workCh := make(chan matrix.RouteRecord, len(records))
	resultCh := make(chan ranker.ScoredRoute, len(records))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range workCh {
				snap, err := s.provider.Quote(ctx, record)
				if err != nil {
					s.logger.Warn().Err(err).
						Str("token", record.NativeToken).
						Uint64("chain_origin", record.ChainOrigin).
						Uint64("chain_dest", record.ChainDest).
						Msg("quote failed, route dropped from scan")
					continue
				}
				resultCh <- ranker.ScoredRoute{
					Record:       record,
					Quote:        snap,
					TarScore:     scoring.TarScore(record, snap),
					TarModel:     scoring.TarModel{}.Predict(record, snap),
					FlankerModel: scoring.FlankerModel{}.Predict(record, snap),
				}
			}
		}()
	}

	for _, record := range records {
		workCh <- record
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	scored := make([]ranker.ScoredRoute, 0, len(records))
	for route := range resultCh {
		scored = append(scored, route)
	}
	return scored
}

func (s *Service) persistScan(ctx context.Context, scannedAt time.Time, result ranker.Result) error {
	summary := storage.ScanSummary{
		ScannedAt:    scannedAt,
		TotalRoutes:  result.TotalScanned,
		Qualifying:   result.Qualifying,
		MeanTarScore: decimal.NewFromFloat(result.MeanTarScore),
		CreatedAt:    time.Now().UTC(),
	}

	routes := make([]storage.RouteScore, 0, len(result.Top))
	for _, route := range result.Top {
		routes = append(routes, storage.RouteScore{
			ChainOrigin:    route.Record.ChainOrigin,
			ChainDest:      route.Record.ChainDest,
			NativeToken:    route.Record.NativeToken,
			DexOrigin:      route.Record.DexOrigin,
			DexDest:        route.Record.DexDest,
			BridgeProtocol: route.Record.BridgeProtocol,
			LiquidityScore: decimal.NewFromFloat(route.Record.LiquidityScore),
			FeeTier:        decimal.NewFromFloat(route.Record.FeeTier),
			SpreadPct:      decimal.NewFromFloat(route.Quote.SpreadPercentage),
			SlippagePct:    decimal.NewFromFloat(route.Quote.SlippageEstimate),
			GasCostUSD:     decimal.NewFromFloat(route.Quote.GasCostUSD),
			TarScore:       decimal.NewFromFloat(route.TarScore),
			TarModelScore:  decimal.NewFromFloat(route.TarModel),
			FlankerScore:   decimal.NewFromFloat(route.FlankerModel),
		})
	}

	scanID, err := s.store.InsertScan(ctx, summary, routes)
	if err != nil {
		return err
	}
	s.logger.Debug().Int64("scan_id", scanID).Int("routes", len(routes)).Msg("scan persisted")
	return nil
}

// maybeAlert dispatches a notification when any ranked route clears the alert
// threshold, subject to the cooldown window.
func (s *Service) maybeAlert(ctx context.Context, scannedAt time.Time, result ranker.Result) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	hot := make([]ranker.ScoredRoute, 0, len(result.Top))
	for _, route := range result.Top {
		if route.TarScore >= s.alertMinTar {
			hot = append(hot, route)
		}
	}
	if len(hot) == 0 {
		return
	}

	s.mu.Lock()
	if s.cooldown > 0 && !s.lastAlert.IsZero() && scannedAt.Sub(s.lastAlert) < s.cooldown {
		s.mu.Unlock()
		s.logger.Debug().Time("scanned_at", scannedAt).Msg("alert suppressed by cooldown")
		return
	}
	s.lastAlert = scannedAt
	s.mu.Unlock()

	note := alerting.Notification{
		ScannedAt:    scannedAt,
		MinTarScore:  s.alertMinTar,
		TotalScanned: result.TotalScanned,
		Routes:       hot,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("scanned_at", scannedAt).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
