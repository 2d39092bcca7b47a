package liquidity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"cerberus/internal/domain/exposure"
	"cerberus/internal/domain/loan"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Compile-time checks
var (
	_ exposure.LiquiditySource = (*Reader)(nil)
	_ loan.PriceSource         = (*Reader)(nil)
)

// Reader queries the DEX indexer for pool state: spot price in SOL per
// token and available SOL-side liquidity in lamports. Both callers treat a
// failed read as "unknown", never as a risk signal.
type Reader struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewReader creates a pool liquidity reader
func NewReader(baseURL string, timeout time.Duration, log *logger.Logger) *Reader {
	return &Reader{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With("component", "liquidity_reader"),
	}
}

type poolResponse struct {
	TokenMint         string          `json:"token_mint"`
	PriceSol          decimal.Decimal `json:"price_sol"`
	LiquidityLamports int64           `json:"liquidity_lamports"`
}

func (r *Reader) fetch(ctx context.Context, tokenMint string) (*poolResponse, error) {
	url := fmt.Sprintf("%s/v1/pools/%s", r.baseURL, tokenMint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build pool request")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLiquidityUnavailable, "indexer unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrLiquidityUnavailable, "indexer returned status %d for mint %s", resp.StatusCode, tokenMint)
	}

	var pool poolResponse
	if err := json.NewDecoder(resp.Body).Decode(&pool); err != nil {
		return nil, errors.Wrap(err, "failed to decode pool response")
	}

	return &pool, nil
}

// PoolLiquidity returns available SOL-side pool liquidity in lamports
func (r *Reader) PoolLiquidity(ctx context.Context, tokenMint string) (int64, error) {
	pool, err := r.fetch(ctx, tokenMint)
	if err != nil {
		return 0, err
	}
	return pool.LiquidityLamports, nil
}

// CurrentPrice returns the spot price in SOL per token
func (r *Reader) CurrentPrice(ctx context.Context, tokenMint string) (decimal.Decimal, error) {
	pool, err := r.fetch(ctx, tokenMint)
	if err != nil {
		return decimal.Zero, err
	}
	return pool.PriceSol, nil
}
