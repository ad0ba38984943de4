package model

import (
	"time"

	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/risk"
)

const EnvelopeVersion = "v1"

// Envelope is the stable JSON output contract for every command.
type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Command   string           `json:"command"`
	Providers []ProviderStatus `json:"providers,omitempty"`
	Cache     CacheStatus      `json:"cache"`
	Partial   bool             `json:"partial"`
}

type ProviderStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

// BatchResult is the envelope payload for commands that submit a batch.
type BatchResult struct {
	Batch     execution.Batch `json:"batch"`
	Simulated bool            `json:"simulated"`
}

// PositionReport is the envelope payload for `perpctl positions`.
type PositionReport struct {
	Account   string      `json:"account"`
	ChainID   string      `json:"chain_id"`
	Positions []risk.View `json:"positions"`
	FetchedAt string      `json:"fetched_at"`
}

// APRSource is one upstream contribution to the aggregate staking APR.
// Error is non-empty when the source failed; its APR fields are then zero and
// excluded from the aggregate.
type APRSource struct {
	Name      string  `json:"name"`
	APR       float64 `json:"apr"`
	RewardAPR float64 `json:"reward_apr"`
	Error     string  `json:"error,omitempty"`
}

// APRReport merges per-source results with partial-failure tolerance: a
// failed source never blanks the report, it shows up as a source-level error.
type APRReport struct {
	TotalAPR  float64     `json:"total_apr"`
	Sources   []APRSource `json:"sources"`
	Partial   bool        `json:"partial"`
	FetchedAt string      `json:"fetched_at"`
}

// ApprovalReport is the envelope payload for `perpctl approve`.
type ApprovalReport struct {
	Token            string `json:"token"`
	Spender          string `json:"spender"`
	CurrentAllowance string `json:"current_allowance"`
	RequiredAmount   string `json:"required_amount"`
	NeedsApproval    bool   `json:"needs_approval"`
	BatchID          string `json:"batch_id,omitempty"`
}
