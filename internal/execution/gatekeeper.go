package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

// ChainReader abstracts the read-only chain queries the gatekeeper needs, so
// approval decisions stay testable without a live RPC endpoint.
type ChainReader interface {
	Allowance(ctx context.Context, rpcURL string, token, owner, spender common.Address) (*big.Int, error)
}

// ApprovalState is the gatekeeper's verdict for one token/spender pair.
// Approval is nil whenever NeedsApproval is false.
type ApprovalState struct {
	Token            string   `json:"token"`
	Spender          string   `json:"spender"`
	CurrentAllowance *big.Int `json:"-"`
	RequiredAmount   *big.Int `json:"-"`
	NeedsApproval    bool     `json:"needs_approval"`
	Approval         *Call    `json:"approval,omitempty"`
}

type ApprovalCheck struct {
	ChainID  string
	RPCURL   string
	Token    common.Address
	Owner    common.Address
	Spender  common.Address
	Required *big.Int
	Symbol   string
}

// CheckApproval reads the current allowance and, only when it is strictly
// below the required amount, synthesizes the approval call. An allowance
// exactly equal to the requirement passes without a new approval.
func CheckApproval(ctx context.Context, reader ChainReader, check ApprovalCheck) (ApprovalState, error) {
	if reader == nil {
		return ApprovalState{}, clierr.New(clierr.CodeInternal, "missing chain reader")
	}
	if check.Required == nil || check.Required.Sign() <= 0 {
		return ApprovalState{}, clierr.New(clierr.CodeInvalidAmount, "approval check requires a positive amount in base units")
	}
	if check.Token == (common.Address{}) || check.Spender == (common.Address{}) {
		return ApprovalState{}, clierr.New(clierr.CodeInvalidRoute, "approval check requires token and spender addresses")
	}

	allowance, err := reader.Allowance(ctx, check.RPCURL, check.Token, check.Owner, check.Spender)
	if err != nil {
		return ApprovalState{}, clierr.Wrap(clierr.CodeUnavailable, "read token allowance", err)
	}
	state := ApprovalState{
		Token:            check.Token.Hex(),
		Spender:          check.Spender.Hex(),
		CurrentAllowance: allowance,
		RequiredAmount:   new(big.Int).Set(check.Required),
	}
	if allowance.Cmp(check.Required) >= 0 {
		return state, nil
	}

	call, err := BuildApprovalCall(check)
	if err != nil {
		return ApprovalState{}, err
	}
	state.NeedsApproval = true
	state.Approval = &call
	return state, nil
}

// BuildApprovalCall packs an exact-amount ERC20 approve for the spender.
// Approvals are always for the requested amount, never unlimited.
func BuildApprovalCall(check ApprovalCheck) (Call, error) {
	data, err := execERC20ABI.Pack("approve", check.Spender, check.Required)
	if err != nil {
		return Call{}, clierr.Wrap(clierr.CodeInternal, "pack approve calldata", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(check.Symbol))
	if symbol == "" {
		symbol = "token"
	}
	return Call{
		CallID:       fmt.Sprintf("approve-%s", strings.TrimPrefix(strings.ToLower(check.Token.Hex()), "0x")),
		Type:         CallTypeApproval,
		Status:       CallStatusPending,
		ChainID:      check.ChainID,
		RPCURL:       check.RPCURL,
		Description:  fmt.Sprintf("Approve %s for spender", symbol),
		Target:       check.Token.Hex(),
		Data:         "0x" + common.Bytes2Hex(data),
		Value:        "0",
		TokenAddress: check.Token.Hex(),
	}, nil
}
