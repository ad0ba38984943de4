package execution

import "time"

type BatchStatus string

type CallStatus string

type CallType string

const (
	BatchStatusPlanned   BatchStatus = "planned"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

const (
	CallStatusPending   CallStatus = "pending"
	CallStatusSimulated CallStatus = "simulated"
	CallStatusSubmitted CallStatus = "submitted"
	CallStatusConfirmed CallStatus = "confirmed"
	CallStatusFailed    CallStatus = "failed"
)

const (
	CallTypeApproval CallType = "approval"
	CallTypeDeposit  CallType = "deposit"
	CallTypeWithdraw CallType = "withdraw"
	CallTypeBridge   CallType = "bridge_send"
	CallTypeStake    CallType = "stake"
)

type Constraints struct {
	SlippageBps int64  `json:"slippage_bps,omitempty"`
	Simulate    bool   `json:"simulate"`
	Deadline    string `json:"deadline,omitempty"`
}

// Call is a single on-chain call descriptor. Immutable once built except for
// the execution-lifecycle fields (Status, TxHash, Error, GasEstimate).
type Call struct {
	CallID      string     `json:"call_id"`
	Type        CallType   `json:"type"`
	Status      CallStatus `json:"status"`
	ChainID     string     `json:"chain_id"`
	RPCURL      string     `json:"rpc_url,omitempty"`
	Description string     `json:"description,omitempty"`
	Target      string     `json:"target"`
	Data        string     `json:"data"`
	Value       string     `json:"value"`
	// Optional metadata consumed by downstream hooks.
	TokenAddress string `json:"token_address,omitempty"`
	InputIndex   int    `json:"input_index,omitempty"`
	GasEstimate  string `json:"gas_estimate,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Batch is an ordered sequence of calls submitted as one orchestration unit.
// Approvals must precede the calls they authorize (enforced by ValidateBatch);
// the signing capability either confirms the whole sequence or the batch fails.
type Batch struct {
	BatchID     string         `json:"batch_id"`
	IntentType  string         `json:"intent_type"`
	Status      BatchStatus    `json:"status"`
	ChainID     string         `json:"chain_id"`
	FromAddress string         `json:"from_address,omitempty"`
	InputAmount string         `json:"input_amount,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	Constraints Constraints    `json:"constraints"`
	Calls       []Call         `json:"calls"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBatch(batchID, intentType, chainID string, constraints Constraints) Batch {
	now := time.Now().UTC().Format(time.RFC3339)
	return Batch{
		BatchID:     batchID,
		IntentType:  intentType,
		Status:      BatchStatusPlanned,
		ChainID:     chainID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Constraints: constraints,
		Calls:       []Call{},
	}
}

func (b *Batch) Touch() {
	b.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}
