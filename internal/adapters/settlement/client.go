package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cerberus/internal/domain/liquidation"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Compile-time check
var _ liquidation.Settler = (*Client)(nil)

// Client talks to the transaction executor sidecar over HTTP. The sidecar
// owns transaction construction, signing and on-chain submission; this
// engine only hands it a loan id and a signing identity and reads back the
// recovered amount.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a settlement client
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With("component", "settlement_client"),
	}
}

type settleRequest struct {
	LoanID   int64  `json:"loan_id"`
	Identity string `json:"identity"`
}

// Settle executes the liquidation for a loan and returns the outcome.
// A transport failure is an error; an executor-reported failure comes back
// as Success=false with the executor's reason.
func (c *Client) Settle(ctx context.Context, loanID int64, identity string) (*liquidation.SettlementResult, error) {
	body, err := json.Marshal(settleRequest{LoanID: loanID, Identity: identity})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode settle request")
	}

	url := fmt.Sprintf("%s/v1/liquidations", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build settle request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSettlementFailed, "executor unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrSettlementFailed, "executor returned status %d for loan %d", resp.StatusCode, loanID)
	}

	var result liquidation.SettlementResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode settle response")
	}

	c.log.Debug("Settlement response",
		"loan_id", loanID,
		"success", result.Success,
		"actual_lamports", result.ActualLamports,
	)

	return &result, nil
}
