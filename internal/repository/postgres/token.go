package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"cerberus/internal/domain/token"
	"cerberus/pkg/errors"
)

// Compile-time check
var _ token.Repository = (*TokenRepository)(nil)

// TokenRepository implements token.Repository using sqlx
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new token config repository
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get retrieves one token config
func (r *TokenRepository) Get(ctx context.Context, tokenMint string) (*token.Config, error) {
	var cfg token.Config

	query := `SELECT * FROM token_configs WHERE token_mint = $1`

	err := r.db.GetContext(ctx, &cfg, query, tokenMint)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "token config %s", tokenMint)
	}
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetAll returns every whitelisted token
func (r *TokenRepository) GetAll(ctx context.Context) ([]*token.Config, error) {
	var configs []*token.Config

	query := `SELECT * FROM token_configs ORDER BY token_mint`

	err := r.db.SelectContext(ctx, &configs, query)
	if err != nil {
		return nil, err
	}

	return configs, nil
}

// GetEnabled returns tokens currently enabled for lending
func (r *TokenRepository) GetEnabled(ctx context.Context) ([]*token.Config, error) {
	var configs []*token.Config

	query := `SELECT * FROM token_configs WHERE enabled = true ORDER BY token_mint`

	err := r.db.SelectContext(ctx, &configs, query)
	if err != nil {
		return nil, err
	}

	return configs, nil
}

// Disable blacklists a token. Idempotent: a token already disabled keeps
// its original blacklist timestamp and reason.
func (r *TokenRepository) Disable(ctx context.Context, tokenMint string, reason string, at time.Time) error {
	query := `
		UPDATE token_configs SET
			enabled = false,
			blacklisted_at = COALESCE(blacklisted_at, $2),
			blacklist_reason = COALESCE(blacklist_reason, $3),
			updated_at = NOW()
		WHERE token_mint = $1`

	_, err := r.db.ExecContext(ctx, query, tokenMint, at, reason)
	return err
}
