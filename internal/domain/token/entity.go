package token

import (
	"context"
	"time"
)

// Tier mirrors the on-chain token tiers
type Tier int

const (
	TierBronze Tier = iota
	TierSilver
	TierGold
)

// Config is the whitelist entry for a collateral token. The engine reads
// the asset universe and pool address from here and may disable a token via
// auto-blacklist; everything else is owned by protocol admin.
type Config struct {
	TokenMint           string     `db:"token_mint"`
	Tier                Tier       `db:"tier"`
	Enabled             bool       `db:"enabled"`
	PoolAddress         string     `db:"pool_address"`
	LtvBps              int64      `db:"ltv_bps"`
	LiquidationBonusBps int64      `db:"liquidation_bonus_bps"`
	BlacklistedAt       *time.Time `db:"blacklisted_at"`
	BlacklistReason     *string    `db:"blacklist_reason"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Repository reads and (for auto-blacklist only) mutates the token whitelist
type Repository interface {
	Get(ctx context.Context, tokenMint string) (*Config, error)
	GetAll(ctx context.Context) ([]*Config, error)
	GetEnabled(ctx context.Context) ([]*Config, error)

	// Disable flags a token as blacklisted. Idempotent.
	Disable(ctx context.Context, tokenMint string, reason string, at time.Time) error
}
