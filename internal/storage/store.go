package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	insertScanSQL = `INSERT INTO scans (
        scanned_at,
        total_routes,
        qualifying,
        mean_tar_score
    ) VALUES ($1,$2,$3,$4)
    RETURNING id;`

	insertRouteScoreSQL = `INSERT INTO route_scores (
        scan_id,
        chain_origin,
        chain_dest,
        native_token,
        dex_origin,
        dex_dest,
        bridge_protocol,
        liquidity_score,
        fee_tier,
        spread_pct,
        slippage_pct,
        gas_cost_usd,
        tar_score,
        tar_model_score,
        flanker_score
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	listScansBetweenSQL = `SELECT
        id, scanned_at, total_routes, qualifying, mean_tar_score, created_at
    FROM scans
    WHERE scanned_at >= $1 AND scanned_at < $2
    ORDER BY scanned_at;`

	listRecentScansSQL = `SELECT
        id, scanned_at, total_routes, qualifying, mean_tar_score, created_at
    FROM scans
    ORDER BY scanned_at DESC
    LIMIT $1;`

	listRoutesForScanSQL = `SELECT
        id, scan_id, chain_origin, chain_dest, native_token, dex_origin,
        dex_dest, bridge_protocol, liquidity_score, fee_tier, spread_pct,
        slippage_pct, gas_cost_usd, tar_score, tar_model_score, flanker_score,
        created_at
    FROM route_scores
    WHERE scan_id = $1
    ORDER BY tar_score DESC;`

	insertSizingSQL = `INSERT INTO sizing_decisions (
        chain_id,
        token,
        lender,
        decimals,
        requested,
        cap,
        floor,
        final,
        outcome,
        paper_mode
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING id, created_at;`

	countScansSQL = `SELECT COUNT(*) FROM scans;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ScanStore defines persistence for pipeline runs.
type ScanStore interface {
	InsertScan(ctx context.Context, scan ScanSummary, routes []RouteScore) (int64, error)
	ListScansBetween(ctx context.Context, from, to time.Time) ([]ScanSummary, error)
	ListRecentScans(ctx context.Context, limit int) ([]ScanSummary, error)
	ListRoutesForScan(ctx context.Context, scanID int64) ([]RouteScore, error)
	CountScans(ctx context.Context) (int64, error)
}

// SizingStore defines persistence for loan-sizing audit records.
type SizingStore interface {
	InsertSizingDecision(ctx context.Context, record SizingRecord) (SizingRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to scans, route scores, and sizing decisions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertScan persists a scan summary with its route scores in one transaction
// and returns the scan id.
func (s *Store) InsertScan(ctx context.Context, scan ScanSummary, routes []RouteScore) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin scan tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var scanID int64
	if err := tx.QueryRow(ctx, insertScanSQL,
		scan.ScannedAt,
		scan.TotalRoutes,
		scan.Qualifying,
		scan.MeanTarScore.String(),
	).Scan(&scanID); err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}

	for _, route := range routes {
		if _, err := tx.Exec(ctx, insertRouteScoreSQL,
			scanID,
			route.ChainOrigin,
			route.ChainDest,
			route.NativeToken,
			route.DexOrigin,
			route.DexDest,
			route.BridgeProtocol,
			route.LiquidityScore.String(),
			route.FeeTier.String(),
			route.SpreadPct.String(),
			route.SlippagePct.String(),
			route.GasCostUSD.String(),
			route.TarScore.String(),
			route.TarModelScore.String(),
			route.FlankerScore.String(),
		); err != nil {
			return 0, fmt.Errorf("insert route score: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit scan tx: %w", err)
	}
	return scanID, nil
}

// ListScansBetween lists scan summaries within a time window.
func (s *Store) ListScansBetween(ctx context.Context, from, to time.Time) ([]ScanSummary, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listScansBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list scans between: %w", queryErr)
	}
	defer rows.Close()

	return collectScans(rows)
}

// ListRecentScans lists the most recent scans ordered by descending time.
func (s *Store) ListRecentScans(ctx context.Context, limit int) ([]ScanSummary, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentScansSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent scans: %w", queryErr)
	}
	defer rows.Close()

	return collectScans(rows)
}

// ListRoutesForScan returns the route scores of one scan, best first.
func (s *Store) ListRoutesForScan(ctx context.Context, scanID int64) ([]RouteScore, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRoutesForScanSQL, scanID)
	if queryErr != nil {
		return nil, fmt.Errorf("list routes for scan: %w", queryErr)
	}
	defer rows.Close()

	routes := make([]RouteScore, 0)
	for rows.Next() {
		route, scanErr := scanRouteScore(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		routes = append(routes, route)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return routes, nil
}

// CountScans counts stored scans.
func (s *Store) CountScans(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countScansSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count scans: %w", scanErr)
	}
	return count, nil
}

// InsertSizingDecision persists a loan-sizing audit record.
func (s *Store) InsertSizingDecision(ctx context.Context, record SizingRecord) (SizingRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SizingRecord{}, err
	}

	var cap any
	if record.Cap != nil {
		cap = *record.Cap
	}

	row := pool.QueryRow(ctx, insertSizingSQL,
		record.ChainID,
		record.Token,
		record.Lender,
		record.Decimals,
		record.Requested,
		cap,
		record.Floor,
		record.Final,
		record.Outcome,
		record.PaperMode,
	)

	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return SizingRecord{}, fmt.Errorf("insert sizing decision: %w", err)
	}
	return record, nil
}

func collectScans(rows pgx.Rows) ([]ScanSummary, error) {
	scans := make([]ScanSummary, 0)
	for rows.Next() {
		var (
			scan    ScanSummary
			meanStr string
		)
		if err := rows.Scan(
			&scan.ID,
			&scan.ScannedAt,
			&scan.TotalRoutes,
			&scan.Qualifying,
			&meanStr,
			&scan.CreatedAt,
		); err != nil {
			return nil, err
		}
		mean, err := decimal.NewFromString(meanStr)
		if err != nil {
			return nil, fmt.Errorf("parse mean tar score: %w", err)
		}
		scan.MeanTarScore = mean
		scans = append(scans, scan)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return scans, nil
}

func scanRouteScore(rows pgx.Rows) (RouteScore, error) {
	var (
		route  RouteScore
		fields [8]string
	)

	if err := rows.Scan(
		&route.ID,
		&route.ScanID,
		&route.ChainOrigin,
		&route.ChainDest,
		&route.NativeToken,
		&route.DexOrigin,
		&route.DexDest,
		&route.BridgeProtocol,
		&fields[0], // liquidity_score
		&fields[1], // fee_tier
		&fields[2], // spread_pct
		&fields[3], // slippage_pct
		&fields[4], // gas_cost_usd
		&fields[5], // tar_score
		&fields[6], // tar_model_score
		&fields[7], // flanker_score
		&route.CreatedAt,
	); err != nil {
		return RouteScore{}, err
	}

	targets := []*decimal.Decimal{
		&route.LiquidityScore, &route.FeeTier, &route.SpreadPct,
		&route.SlippagePct, &route.GasCostUSD, &route.TarScore,
		&route.TarModelScore, &route.FlankerScore,
	}
	for i, raw := range fields {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return RouteScore{}, fmt.Errorf("parse route score column %d: %w", i, err)
		}
		*targets[i] = value
	}

	return route, nil
}

var (
	_ ScanStore      = (*Store)(nil)
	_ SizingStore    = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
