// Package sizer bounds borrowed position sizes against live on-chain
// liquidity using a floor/cap guardrail policy.
package sizer

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vegas-max/Titan2.0/internal/ethrpc"
)

// Default guardrail values (real-money limits).
const (
	DefaultMinLoanUSD        = 10_000
	DefaultMaxTVLShare       = 0.20
	DefaultSlippageTolerance = 0.995
)

// floorUnits is the fixed minimum trade size in whole token units, scaled by
// the token's decimals at decision time.
const floorUnits = 500

// shareQuantizeDigits is the decimal precision the TVL share is quantised to
// before the integer cap multiplication.
const shareQuantizeDigits = 6

// Outcome classifies a sizing decision.
type Outcome string

const (
	// OutcomeAccepted means the requested amount passed both guards unchanged.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeScaledDown means the request exceeded the liquidity cap and was
	// reduced to it.
	OutcomeScaledDown Outcome = "scaled_down"
	// OutcomeRejectedBelowFloor means the (possibly scaled) amount fell below
	// the profitability floor; the final amount is zero. This is a normal
	// business outcome, not a failure.
	OutcomeRejectedBelowFloor Outcome = "rejected_below_floor"
	// OutcomePaperFallback means no usable liquidity data was available, so
	// the request was validated against the floor only.
	OutcomePaperFallback Outcome = "paper_fallback"
)

// Decision records one sizing run. Final is either zero or lies in
// [Floor, Cap]; Cap is nil on the paper-mode path.
type Decision struct {
	Requested *big.Int
	Cap       *big.Int
	Floor     *big.Int
	Final     *big.Int
	Outcome   Outcome
	PaperMode bool
}

// Guardrails holds the mutable sizing limits. Reads during a decision take a
// consistent snapshot, so concurrent setter calls cannot tear one decision.
type Guardrails struct {
	mu                sync.RWMutex
	minLoanUSD        uint64
	maxTVLShare       float64
	slippageTolerance float64
}

// NewGuardrails returns guardrails at their default limits.
func NewGuardrails() *Guardrails {
	return &Guardrails{
		minLoanUSD:        DefaultMinLoanUSD,
		maxTVLShare:       DefaultMaxTVLShare,
		slippageTolerance: DefaultSlippageTolerance,
	}
}

// SetMinLoanUSD updates the informational minimum loan size.
func (g *Guardrails) SetMinLoanUSD(minUSD uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.minLoanUSD = minUSD
}

// SetMaxTVLShare updates the pool share ceiling. Values outside (0, 1] are
// rejected and the previous value kept.
func (g *Guardrails) SetMaxTVLShare(share float64) error {
	if share <= 0 || share > 1 {
		return fmt.Errorf("max tvl share must be in (0, 1], got %f", share)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxTVLShare = share
	return nil
}

// SetSlippageTolerance updates the slippage tolerance. Values outside (0, 1]
// are rejected and the previous value kept.
func (g *Guardrails) SetSlippageTolerance(tolerance float64) error {
	if tolerance <= 0 || tolerance > 1 {
		return fmt.Errorf("slippage tolerance must be in (0, 1], got %f", tolerance)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slippageTolerance = tolerance
	return nil
}

// MinLoanUSD returns the current minimum loan size.
func (g *Guardrails) MinLoanUSD() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.minLoanUSD
}

// MaxTVLShare returns the current pool share ceiling.
func (g *Guardrails) MaxTVLShare() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.maxTVLShare
}

// SlippageTolerance returns the current slippage tolerance.
func (g *Guardrails) SlippageTolerance() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.slippageTolerance
}

func (g *Guardrails) snapshot() (uint64, float64, float64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.minLoanUSD, g.maxTVLShare, g.slippageTolerance
}

// LoanSizer converts a requested trade size into a safe, liquidity-bounded
// amount for one chain. Every decision is reproducible from (guardrails,
// inputs, liquidity reading) alone.
type LoanSizer struct {
	chainID    uint64
	reader     ethrpc.TVLReader
	guardrails *Guardrails
	logger     zerolog.Logger
}

// New constructs a sizer with default guardrails. reader may be nil, in which
// case every decision takes the paper-mode path.
func New(chainID uint64, reader ethrpc.TVLReader, logger zerolog.Logger) *LoanSizer {
	return &LoanSizer{
		chainID:    chainID,
		reader:     reader,
		guardrails: NewGuardrails(),
		logger:     logger.With().Str("component", "loan_sizer").Uint64("chain_id", chainID).Logger(),
	}
}

// Guardrails exposes the mutable limits of this sizer instance.
func (s *LoanSizer) Guardrails() *Guardrails {
	return s.guardrails
}

// ChainID returns the chain this sizer operates on.
func (s *LoanSizer) ChainID() uint64 {
	return s.chainID
}

// OptimizeLoanSize runs the guardrail state machine for one trade decision.
// The single external liquidity read is time bounded by the reader; a failed
// or zero read routes to the paper-mode fallback instead of propagating.
func (s *LoanSizer) OptimizeLoanSize(ctx context.Context, token, lender common.Address, requested *big.Int, decimals uint8) Decision {
	_, maxShare, _ := s.guardrails.snapshot()
	floor := minFloor(decimals)

	poolLiquidity := s.readLiquidity(ctx, token, lender)
	if poolLiquidity == nil || poolLiquidity.Sign() == 0 {
		return s.paperModeDecision(requested, floor)
	}

	cap := maxCap(poolLiquidity, maxShare)
	amount := new(big.Int).Set(requested)
	scaled := false

	if amount.Cmp(cap) > 0 {
		s.logger.Warn().
			Str("requested", amount.String()).
			Str("cap", cap.String()).
			Msg("liquidity constraint hit, scaling down")
		amount.Set(cap)
		scaled = true
	}

	if amount.Cmp(floor) < 0 {
		s.logger.Info().
			Str("amount", amount.String()).
			Str("floor", floor.String()).
			Msg("trade too small for profitability, aborting")
		return Decision{
			Requested: requested,
			Cap:       cap,
			Floor:     floor,
			Final:     big.NewInt(0),
			Outcome:   OutcomeRejectedBelowFloor,
		}
	}

	outcome := OutcomeAccepted
	if scaled {
		outcome = OutcomeScaledDown
	}

	s.logger.Info().
		Str("amount", amount.String()).
		Str("cap", cap.String()).
		Str("outcome", string(outcome)).
		Msg("loan sizing optimized")

	return Decision{
		Requested: requested,
		Cap:       cap,
		Floor:     floor,
		Final:     amount,
		Outcome:   outcome,
	}
}

// readLiquidity performs the one external TVL read. nil means no usable data.
func (s *LoanSizer) readLiquidity(ctx context.Context, token, lender common.Address) *big.Int {
	if s.reader == nil {
		return nil
	}
	liquidity, err := s.reader.ReadTVL(ctx, s.chainID, token, lender)
	if err != nil {
		s.logger.Warn().Err(err).Str("token", token.Hex()).Msg("liquidity read failed, entering paper mode")
		return nil
	}
	return liquidity
}

func (s *LoanSizer) paperModeDecision(requested, floor *big.Int) Decision {
	if requested.Cmp(floor) < 0 {
		s.logger.Debug().
			Str("requested", requested.String()).
			Str("floor", floor.String()).
			Msg("paper mode: trade too small")
		return Decision{
			Requested: requested,
			Floor:     floor,
			Final:     big.NewInt(0),
			Outcome:   OutcomeRejectedBelowFloor,
			PaperMode: true,
		}
	}

	s.logger.Debug().Str("requested", requested.String()).Msg("paper mode: using requested amount")
	return Decision{
		Requested: requested,
		Floor:     floor,
		Final:     new(big.Int).Set(requested),
		Outcome:   OutcomePaperFallback,
		PaperMode: true,
	}
}

// maxCap computes pool_liquidity × share in integer arithmetic. The share is
// quantised to 6 decimal digits first, so the final amount carries no
// floating-point drift.
func maxCap(poolLiquidity *big.Int, share float64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(shareQuantizeDigits), nil)
	multiplier := decimal.NewFromFloat(share).Shift(shareQuantizeDigits).Truncate(0).BigInt()

	cap := new(big.Int).Mul(poolLiquidity, multiplier)
	return cap.Div(cap, scale)
}

// minFloor computes the 500-unit minimum in raw base units for the token's
// decimals.
func minFloor(decimals uint8) *big.Int {
	floor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return floor.Mul(floor, big.NewInt(floorUnits))
}
