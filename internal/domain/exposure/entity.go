package exposure

import (
	"context"
	"time"
)

// WarningLevel classifies per-token concentration risk. Levels are ordered;
// the mapping from exposure bps is a monotone step function.
type WarningLevel int

const (
	LevelNone WarningLevel = iota
	LevelWatch
	LevelWarning
	LevelCritical
)

// String returns string representation
func (l WarningLevel) String() string {
	switch l {
	case LevelWatch:
		return "watch"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "none"
	}
}

// TokenExposure is the recomputed-on-demand concentration snapshot for one
// collateral mint. ExposureBps is nil when the pool liquidity read failed;
// that is a data outage, not a risk signal, so WarningLevel stays none.
type TokenExposure struct {
	TokenMint        string       `json:"token_mint"`
	ActiveLoans      int          `json:"active_loans"`
	TotalCollateral  int64        `json:"total_collateral"`
	TotalSolLent     int64        `json:"total_sol_lent"`
	PoolLiquidity    *int64       `json:"pool_liquidity,omitempty"`
	ExposureBps      *int64       `json:"exposure_bps,omitempty"`
	WarningLevel     WarningLevel `json:"warning_level"`
	LiquidityUnknown bool         `json:"liquidity_unknown"`
	ComputedAt       time.Time    `json:"computed_at"`
}

// LiquiditySource reads available pool liquidity in lamports for a mint.
// A read failure must degrade to "unknown" rather than abort callers.
type LiquiditySource interface {
	PoolLiquidity(ctx context.Context, tokenMint string) (int64, error)
}
