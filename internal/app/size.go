package app

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vegas-max/Titan2.0/internal/sizer"
	"github.com/vegas-max/Titan2.0/internal/storage"
)

// Size runs one loan-sizing decision against live chain liquidity and prints
// the result.
func (a *App) Size(ctx context.Context, opts SizeOptions) error {
	if !common.IsHexAddress(opts.TokenAddress) {
		return fmt.Errorf("token address %q is not a valid hex address", opts.TokenAddress)
	}
	lenderHex := opts.Lender
	if lenderHex == "" {
		lenderHex = a.Config.Server.DefaultLender
	}
	if !common.IsHexAddress(lenderHex) {
		return fmt.Errorf("lender address %q is not a valid hex address", lenderHex)
	}
	requested, ok := new(big.Int).SetString(opts.Amount, 10)
	if !ok || requested.Sign() <= 0 {
		return fmt.Errorf("amount %q must be a positive integer in base units", opts.Amount)
	}

	registry := a.newRegistry()
	if !registry.Supported(opts.ChainID) {
		return fmt.Errorf("chain %d has no configured endpoint", opts.ChainID)
	}

	reader, closeRPC := a.newTVLReader(registry)
	defer closeRPC()

	s := sizer.New(opts.ChainID, reader, a.Logger)
	g := s.Guardrails()
	if a.Config.Guardrails.MinLoanUSD > 0 {
		g.SetMinLoanUSD(a.Config.Guardrails.MinLoanUSD)
	}
	if a.Config.Guardrails.MaxTVLShare > 0 {
		if err := g.SetMaxTVLShare(a.Config.Guardrails.MaxTVLShare); err != nil {
			return err
		}
	}
	if a.Config.Guardrails.SlippageTolerance > 0 {
		if err := g.SetSlippageTolerance(a.Config.Guardrails.SlippageTolerance); err != nil {
			return err
		}
	}

	token := common.HexToAddress(opts.TokenAddress)
	lender := common.HexToAddress(lenderHex)
	decision := s.OptimizeLoanSize(ctx, token, lender, requested, opts.Decimals)

	fmt.Fprintf(os.Stdout, "outcome:    %s\n", decision.Outcome)
	fmt.Fprintf(os.Stdout, "requested:  %s\n", decision.Requested)
	if decision.Cap != nil {
		fmt.Fprintf(os.Stdout, "cap:        %s\n", decision.Cap)
	}
	fmt.Fprintf(os.Stdout, "floor:      %s\n", decision.Floor)
	fmt.Fprintf(os.Stdout, "final:      %s\n", decision.Final)
	if decision.PaperMode {
		fmt.Fprintln(os.Stdout, "paper mode: no usable on-chain liquidity, floor check only")
	}

	return a.auditSizingDecision(ctx, opts, token, lender, decision)
}

func (a *App) auditSizingDecision(ctx context.Context, opts SizeOptions, token, lender common.Address, decision sizer.Decision) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	if closeStore != nil {
		defer closeStore()
	}

	record := storage.SizingRecord{
		ChainID:   opts.ChainID,
		Token:     token.Hex(),
		Lender:    lender.Hex(),
		Decimals:  opts.Decimals,
		Requested: decision.Requested.String(),
		Floor:     decision.Floor.String(),
		Final:     decision.Final.String(),
		Outcome:   string(decision.Outcome),
		PaperMode: decision.PaperMode,
		CreatedAt: time.Now().UTC(),
	}
	if decision.Cap != nil {
		capStr := decision.Cap.String()
		record.Cap = &capStr
	}

	if _, err := store.InsertSizingDecision(ctx, record); err != nil {
		a.Logger.Error().Err(err).Msg("failed to audit sizing decision")
	}
	return nil
}
