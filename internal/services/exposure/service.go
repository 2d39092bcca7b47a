package exposure

import (
	"context"
	"sort"
	"time"

	"cerberus/internal/alert"
	"cerberus/internal/domain/exposure"
	"cerberus/internal/domain/liquidation"
	"cerberus/internal/domain/loan"
	"cerberus/internal/domain/risk"
	"cerberus/internal/domain/token"
	"cerberus/internal/metrics"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Bands are the ascending exposure warning thresholds in basis points
type Bands struct {
	WatchBps    int64
	WarningBps  int64
	CriticalBps int64
}

// Level maps exposure bps to a warning level. Monotone non-decreasing in
// the input.
func (b Bands) Level(bps int64) exposure.WarningLevel {
	switch {
	case bps >= b.CriticalBps:
		return exposure.LevelCritical
	case bps >= b.WarningBps:
		return exposure.LevelWarning
	case bps >= b.WatchBps:
		return exposure.LevelWatch
	default:
		return exposure.LevelNone
	}
}

// Service computes per-token concentration risk: lamports lent against a
// collateral mint relative to the SOL-side liquidity of its pool. Nothing
// is persisted; every read recomputes from the loan ledger.
type Service struct {
	loanRepo  loan.Repository
	tokenRepo token.Repository
	liquidity exposure.LiquiditySource
	bands     Bands
	alerts    *alert.Sink
	log       *logger.Logger
}

// New creates an exposure monitor
func New(loanRepo loan.Repository, tokenRepo token.Repository, liquidity exposure.LiquiditySource, bands Bands, alerts *alert.Sink) *Service {
	return &Service{
		loanRepo:  loanRepo,
		tokenRepo: tokenRepo,
		liquidity: liquidity,
		bands:     bands,
		alerts:    alerts,
		log:       logger.Get().With("component", "exposure_monitor"),
	}
}

// build assembles one token's exposure from its aggregate and a liquidity
// read. A failed read degrades to "unknown" instead of erroring: an
// indexer outage must not masquerade as concentration risk.
func (s *Service) build(ctx context.Context, agg *loan.MintAggregate) *exposure.TokenExposure {
	exp := &exposure.TokenExposure{
		TokenMint:       agg.TokenMint,
		ActiveLoans:     agg.ActiveLoans,
		TotalCollateral: agg.TotalCollateral,
		TotalSolLent:    agg.TotalSolBorrowed,
		WarningLevel:    exposure.LevelNone,
		ComputedAt:      time.Now().UTC(),
	}

	liq, err := s.liquidity.PoolLiquidity(ctx, agg.TokenMint)
	if err != nil || liq <= 0 {
		if err != nil {
			s.log.Warn("Pool liquidity read failed", "token_mint", agg.TokenMint, "error", err)
		}
		exp.LiquidityUnknown = true
		return exp
	}

	bps := liquidation.BasisPoints(agg.TotalSolBorrowed, liq)
	exp.PoolLiquidity = &liq
	exp.ExposureBps = &bps
	exp.WarningLevel = s.bands.Level(bps)

	return exp
}

// aggregates returns the per-mint sums for the whole whitelist universe,
// including enabled tokens that currently have no active loans
func (s *Service) aggregates(ctx context.Context) ([]*loan.MintAggregate, error) {
	aggs, err := s.loanRepo.AggregateActiveByMint(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate active loans")
	}

	byMint := make(map[string]*loan.MintAggregate, len(aggs))
	for _, agg := range aggs {
		byMint[agg.TokenMint] = agg
	}

	configs, err := s.tokenRepo.GetEnabled(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load token whitelist")
	}
	for _, cfg := range configs {
		if _, ok := byMint[cfg.TokenMint]; !ok {
			byMint[cfg.TokenMint] = &loan.MintAggregate{TokenMint: cfg.TokenMint}
		}
	}

	merged := make([]*loan.MintAggregate, 0, len(byMint))
	for _, agg := range byMint {
		merged = append(merged, agg)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].TokenMint < merged[j].TokenMint })

	return merged, nil
}

// ComputeExposure computes the snapshot for one collateral mint
func (s *Service) ComputeExposure(ctx context.Context, tokenMint string) (*exposure.TokenExposure, error) {
	aggs, err := s.loanRepo.AggregateActiveByMint(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate active loans")
	}

	agg := &loan.MintAggregate{TokenMint: tokenMint}
	for _, a := range aggs {
		if a.TokenMint == tokenMint {
			agg = a
			break
		}
	}

	return s.build(ctx, agg), nil
}

// GetAllExposures computes snapshots for the whole universe. One token's
// liquidity-read failure never aborts the batch; the affected entry carries
// LiquidityUnknown instead.
func (s *Service) GetAllExposures(ctx context.Context) ([]*exposure.TokenExposure, error) {
	aggs, err := s.aggregates(ctx)
	if err != nil {
		return nil, err
	}

	exposures := make([]*exposure.TokenExposure, 0, len(aggs))
	for _, agg := range aggs {
		exposures = append(exposures, s.build(ctx, agg))
	}

	return exposures, nil
}

// GetTokensWithWarnings returns only tokens at watch level or above
func (s *Service) GetTokensWithWarnings(ctx context.Context) ([]*exposure.TokenExposure, error) {
	all, err := s.GetAllExposures(ctx)
	if err != nil {
		return nil, err
	}

	warned := make([]*exposure.TokenExposure, 0)
	for _, exp := range all {
		if exp.WarningLevel > exposure.LevelNone {
			warned = append(warned, exp)
		}
	}

	return warned, nil
}

// RefreshAll recomputes every exposure, updates the metrics gauges and
// raises security events for critical concentrations. Idempotent.
func (s *Service) RefreshAll(ctx context.Context) ([]*exposure.TokenExposure, error) {
	all, err := s.GetAllExposures(ctx)
	if err != nil {
		return nil, err
	}

	for _, exp := range all {
		metrics.ExposureWarnings.WithLabelValues(exp.TokenMint).Set(float64(exp.WarningLevel))
		if exp.ExposureBps != nil {
			metrics.ExposureBps.WithLabelValues(exp.TokenMint).Set(float64(*exp.ExposureBps))
		}

		if exp.WarningLevel == exposure.LevelCritical {
			s.alerts.Security(ctx, risk.EventExposureWarning, alert.SeverityCritical,
				"Token exposure critical: "+exp.TokenMint,
				map[string]interface{}{
					"token_mint":     exp.TokenMint,
					"total_sol_lent": exp.TotalSolLent,
					"exposure_bps":   *exp.ExposureBps,
				}, "exposure_monitor")
		}
	}

	s.log.Debug("Exposure refresh complete", "tokens", len(all))
	return all, nil
}
