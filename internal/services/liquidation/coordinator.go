package liquidation

import (
	"context"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cerberus/internal/adapters/kafka"
	"cerberus/internal/alert"
	"cerberus/internal/domain/liquidation"
	"cerberus/internal/domain/loan"
	"cerberus/internal/domain/lock"
	"cerberus/internal/domain/risk"
	"cerberus/internal/domain/token"
	"cerberus/internal/events"
	"cerberus/internal/metrics"
	"cerberus/internal/services/breaker"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Config carries the coordinator's policy values
type Config struct {
	LockTTL          time.Duration
	InterLoanDelay   time.Duration
	AutoBlacklistBps int64
}

// Coordinator drives one liquidation cycle per scheduler tick. Multiple
// redundant instances run concurrently and are mutually unaware except
// through the shared lock store and the shared ledger; exactly-once comes
// from the lock, the re-check inside the hold, and the compare-and-set
// status transition, in that order of defense.
type Coordinator struct {
	instanceID uuid.UUID
	cfg        Config

	loanRepo   loan.Repository
	recordRepo liquidation.Repository
	tokenRepo  token.Repository
	locks      lock.Store
	breaker    *breaker.Service
	settler    liquidation.Settler
	identity   liquidation.IdentityResolver
	prices     loan.PriceSource
	producer   alert.Producer
	alerts     *alert.Sink

	throttle *rate.Limiter
	log      *logger.Logger
}

// NewCoordinator creates a liquidation coordinator. producer may be nil.
func NewCoordinator(
	instanceID uuid.UUID,
	cfg Config,
	loanRepo loan.Repository,
	recordRepo liquidation.Repository,
	tokenRepo token.Repository,
	locks lock.Store,
	brk *breaker.Service,
	settler liquidation.Settler,
	identity liquidation.IdentityResolver,
	prices loan.PriceSource,
	producer alert.Producer,
	alerts *alert.Sink,
) *Coordinator {
	var throttle *rate.Limiter
	if cfg.InterLoanDelay > 0 {
		throttle = rate.NewLimiter(rate.Every(cfg.InterLoanDelay), 1)
	}

	return &Coordinator{
		instanceID: instanceID,
		cfg:        cfg,
		loanRepo:   loanRepo,
		recordRepo: recordRepo,
		tokenRepo:  tokenRepo,
		locks:      locks,
		breaker:    brk,
		settler:    settler,
		identity:   identity,
		prices:     prices,
		producer:   producer,
		alerts:     alerts,
		throttle:   throttle,
		log:        logger.Get().With("component", "liquidation_coordinator", "instance_id", instanceID),
	}
}

// InstanceID returns this coordinator's worker instance id
func (c *Coordinator) InstanceID() uuid.UUID {
	return c.instanceID
}

// ScanLiquidatable returns ids of loans that look liquidatable right now:
// past due, or collateral price at or below the trigger. The scan is a
// coarse read over a moving ledger; every candidate is re-checked
// authoritatively inside the lock before settlement. Order is stable by id
// so concurrent instances produce reproducible logs.
func (c *Coordinator) ScanLiquidatable(ctx context.Context) ([]int64, error) {
	active, err := c.loanRepo.GetActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load active loans")
	}

	now := time.Now().UTC()
	priceCache := make(map[string]*priceResult)
	ids := make([]int64, 0)

	for _, l := range active {
		if l.Expired(now) {
			ids = append(ids, l.ID)
			continue
		}

		pr, ok := priceCache[l.TokenMint]
		if !ok {
			pr = c.readPrice(ctx, l.TokenMint)
			priceCache[l.TokenMint] = pr
		}
		if pr.ok && l.PriceTriggered(pr.price) {
			ids = append(ids, l.ID)
		}
	}

	return ids, nil
}

// IsLoanLiquidatable is the authoritative single-loan recheck, also
// exposed to API callers. Price wins over expiry when both conditions
// hold, matching the on-chain program.
func (c *Coordinator) IsLoanLiquidatable(ctx context.Context, loanID int64) (bool, liquidation.Reason, error) {
	l, err := c.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return false, "", err
	}
	return c.checkLoan(ctx, l)
}

func (c *Coordinator) checkLoan(ctx context.Context, l *loan.Loan) (bool, liquidation.Reason, error) {
	if l.Status != loan.StatusActive {
		return false, "", nil
	}

	pr := c.readPrice(ctx, l.TokenMint)
	if pr.ok && l.PriceTriggered(pr.price) {
		return true, liquidation.ReasonPriceTriggered, nil
	}
	if l.Expired(time.Now().UTC()) {
		return true, liquidation.ReasonExpired, nil
	}

	return false, "", nil
}

type priceResult struct {
	ok    bool
	price decimal.Decimal
}

// RunCycle executes one full liquidation pass. The breaker check at cycle
// start is the only abort point; once a loan is in flight the cycle runs it
// to completion. Settlement failures are retried on the next scheduled
// cycle, never within this one, which bounds worst-case lock-hold time.
func (c *Coordinator) RunCycle(ctx context.Context) (*liquidation.CycleResult, error) {
	start := time.Now()
	res := &liquidation.CycleResult{}

	status, err := c.breaker.Evaluate(ctx)
	if err != nil {
		metrics.CycleRuns.WithLabelValues("error").Inc()
		return res, errors.Wrap(err, "breaker evaluation failed")
	}
	if status.Tripped {
		res.Blocked = true
		metrics.CycleRuns.WithLabelValues("blocked").Inc()
		c.log.Warn("Cycle blocked by circuit breaker", "reason", status.TripReason)
		return res, nil
	}

	ids, err := c.ScanLiquidatable(ctx)
	if err != nil {
		metrics.CycleRuns.WithLabelValues("error").Inc()
		return res, err
	}
	res.TotalChecked = len(ids)

	identityAlerted := false
	for _, id := range ids {
		if c.throttle != nil {
			if err := c.throttle.Wait(ctx); err != nil {
				break
			}
		}
		c.processLoan(ctx, id, res, &identityAlerted)
	}

	metrics.CycleRuns.WithLabelValues("completed").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	c.log.Info("Liquidation cycle complete",
		"checked", res.TotalChecked,
		"liquidated", res.Liquidated,
		"errors", res.Errors,
		"skipped_locked", res.SkippedLocked,
		"duration", time.Since(start),
	)

	return res, nil
}

// processLoan runs steps lock -> recheck -> identity -> settle -> record ->
// release for one candidate. Failures never abort the cycle.
func (c *Coordinator) processLoan(ctx context.Context, loanID int64, res *liquidation.CycleResult, identityAlerted *bool) {
	key := strconv.FormatInt(loanID, 10)

	h, err := c.locks.Acquire(ctx, key, c.cfg.LockTTL)
	if err != nil {
		res.Errors++
		c.log.Error("Lock acquire failed", "loan_id", loanID, "error", err)
		return
	}
	if h == nil {
		// Held by a sibling instance: expected, silent, no alert
		res.SkippedLocked++
		metrics.LockContention.Inc()
		return
	}
	defer func() {
		if err := c.locks.Release(ctx, h); err != nil {
			c.log.Warn("Lock release failed, TTL will expire it", "loan_id", loanID, "error", err)
		}
	}()

	// The coarse scan may be stale; re-read the loan inside the hold
	l, err := c.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		res.Errors++
		c.log.Error("Loan re-read failed", "loan_id", loanID, "error", err)
		return
	}

	ok, reason, err := c.checkLoan(ctx, l)
	if err != nil {
		res.Errors++
		c.log.Error("Loan recheck failed", "loan_id", loanID, "error", err)
		return
	}
	if !ok {
		// Closed by a sibling between scan and lock: success-no-op
		c.log.Debug("Loan no longer liquidatable, skipping", "loan_id", loanID)
		return
	}

	identity, err := c.identity.Resolve(ctx)
	if err != nil {
		res.Errors++
		if !*identityAlerted {
			*identityAlerted = true
			c.log.Error("No signing identity, liquidation cannot proceed on this instance", "error", err)
			c.alerts.Security(ctx, risk.EventConfigFailure, alert.SeverityCritical,
				"Liquidator signing identity unavailable",
				map[string]interface{}{"instance_id": c.instanceID.String()},
				c.instanceID.String())
		}
		return
	}

	expected := l.SolBorrowed
	result, err := c.settler.Settle(ctx, loanID, identity)
	if err != nil || !result.Success {
		res.Errors++
		metrics.SettlementErrors.Inc()
		detail := ""
		if err != nil {
			detail = err.Error()
		} else {
			detail = result.Error
		}
		// Retried on the next scheduled cycle only
		c.log.Error("Settlement failed",
			"loan_id", loanID,
			"token_mint", l.TokenMint,
			"expected_lamports", expected,
			"instance_id", c.instanceID,
			"error", detail,
		)
		return
	}

	now := time.Now().UTC()
	status := loan.StatusLiquidatedPrice
	if reason == liquidation.ReasonExpired {
		status = loan.StatusLiquidatedTime
	}

	marked, err := c.loanRepo.MarkLiquidated(ctx, loanID, status, now)
	if err != nil {
		res.Errors++
		c.log.Error("Status transition failed after settlement", "loan_id", loanID, "error", err)
		return
	}
	if !marked {
		// Lost the compare-and-set despite holding the lock; the sibling's
		// record stands and we must not write a second one
		c.log.Warn("Loan already closed at transition, no record written", "loan_id", loanID)
		return
	}

	rec := liquidation.NewRecord(loanID, l.TokenMint, expected, result.ActualLamports, reason, c.instanceID, now)

	if c.cfg.AutoBlacklistBps > 0 && rec.LossBps >= c.cfg.AutoBlacklistBps {
		rec.AutoBlacklisted = true
		c.autoBlacklist(ctx, rec)
	}

	if err := c.recordRepo.Append(ctx, rec); err != nil {
		res.Errors++
		c.log.Error("Failed to append liquidation record", "loan_id", loanID, "error", err)
		return
	}

	res.Liquidated++
	metrics.Liquidations.WithLabelValues(string(reason)).Inc()
	metrics.LossLamports.Add(float64(rec.LossLamports))

	c.log.Info("Loan liquidated",
		"loan_id", loanID,
		"token_mint", l.TokenMint,
		"reason", reason,
		"expected_lamports", humanize.Comma(expected),
		"actual_lamports", humanize.Comma(result.ActualLamports),
		"loss_bps", rec.LossBps,
		"instance_id", c.instanceID,
	)

	c.publishExecuted(ctx, rec)

	// Re-evaluate the windows after every new record
	if _, err := c.breaker.Evaluate(ctx); err != nil {
		c.log.Errorf("Post-record breaker evaluation failed: %v", err)
	}
}

// autoBlacklist disables a token whose single-liquidation loss crossed the
// configured bound. One bad token must not get a second chance to drain
// reserves.
func (c *Coordinator) autoBlacklist(ctx context.Context, rec *liquidation.Record) {
	reason := "liquidation loss " + strconv.FormatInt(rec.LossBps, 10) + " bps on loan " + strconv.FormatInt(rec.LoanID, 10)

	if err := c.tokenRepo.Disable(ctx, rec.TokenMint, reason, rec.LiquidatedAt); err != nil {
		c.log.Error("Auto-blacklist failed", "token_mint", rec.TokenMint, "error", err)
		return
	}

	c.log.Error("Token auto-blacklisted", "token_mint", rec.TokenMint, "loss_bps", rec.LossBps)
	c.alerts.Security(ctx, risk.EventAutoBlacklist, alert.SeverityCritical,
		"Collateral token auto-blacklisted: "+rec.TokenMint,
		map[string]interface{}{
			"token_mint": rec.TokenMint,
			"loan_id":    rec.LoanID,
			"loss_bps":   rec.LossBps,
		}, c.instanceID.String())
}

func (c *Coordinator) publishExecuted(ctx context.Context, rec *liquidation.Record) {
	if c.producer == nil {
		return
	}

	event := events.LiquidationExecuted{
		RecordID:         rec.ID,
		LoanID:           rec.LoanID,
		TokenMint:        rec.TokenMint,
		ExpectedLamports: rec.ExpectedLamports,
		ActualLamports:   rec.ActualLamports,
		LossLamports:     rec.LossLamports,
		LossBps:          rec.LossBps,
		Reason:           string(rec.Reason),
		InstanceID:       rec.InstanceID,
		LiquidatedAt:     rec.LiquidatedAt,
	}

	if err := c.producer.Publish(ctx, kafka.TopicLiquidationExecuted, strconv.FormatInt(rec.LoanID, 10), event); err != nil {
		c.log.Errorf("Failed to publish liquidation event: %v", err)
	}
}

func (c *Coordinator) readPrice(ctx context.Context, mint string) *priceResult {
	price, err := c.prices.CurrentPrice(ctx, mint)
	if err != nil {
		// A price outage disables the price trigger but never the time
		// trigger, and is not an error by itself
		c.log.Debug("Price read failed", "token_mint", mint, "error", err)
		return &priceResult{}
	}
	return &priceResult{ok: true, price: price}
}
