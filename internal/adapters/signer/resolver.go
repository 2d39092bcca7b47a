package signer

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"cerberus/internal/domain/liquidation"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Compile-time check
var _ liquidation.IdentityResolver = (*Resolver)(nil)

// Resolver loads the liquidator signing identity from a Solana CLI style
// keypair file. The identity handed to the executor is the public key; the
// secret never leaves this process boundary. The file is re-read on every
// resolve so an operator can rotate the keypair without a restart.
type Resolver struct {
	keypairPath string
	log         *logger.Logger

	mu         sync.Mutex
	lastPubkey string
}

// NewResolver creates a signing identity resolver
func NewResolver(keypairPath string, log *logger.Logger) *Resolver {
	return &Resolver{
		keypairPath: keypairPath,
		log:         log.With("component", "signer_resolver"),
	}
}

type keypairFile struct {
	Pubkey string `json:"pubkey"`
}

// Resolve returns the liquidator public key, or ErrNoSigningIdentity when
// no keypair is configured or readable
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.keypairPath == "" {
		return "", errors.ErrNoSigningIdentity
	}

	raw, err := os.ReadFile(r.keypairPath)
	if err != nil {
		return "", errors.Wrapf(errors.ErrNoSigningIdentity, "keypair file unreadable: %v", err)
	}

	var kp keypairFile
	if err := json.Unmarshal(raw, &kp); err != nil || kp.Pubkey == "" {
		return "", errors.Wrapf(errors.ErrNoSigningIdentity, "keypair file %s is malformed", r.keypairPath)
	}

	r.mu.Lock()
	if kp.Pubkey != r.lastPubkey {
		r.log.Info("Liquidator signing identity loaded", "pubkey", kp.Pubkey)
		r.lastPubkey = kp.Pubkey
	}
	r.mu.Unlock()

	return kp.Pubkey, nil
}
