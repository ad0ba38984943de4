package execution

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

// ValidateBatch runs the pre-send policy over a planned batch: structural
// checks plus the ordering invariant that every approval precedes a
// non-approval call it can authorize. Runs before any RPC traffic.
func ValidateBatch(batch *Batch, opts ExecuteOptions) error {
	if batch == nil {
		return clierr.New(clierr.CodeInternal, "missing batch")
	}
	if len(batch.Calls) == 0 {
		return clierr.New(clierr.CodeUsage, "batch has no executable calls")
	}
	for i := range batch.Calls {
		call := &batch.Calls[i]
		data, err := decodeHex(call.Data)
		if err != nil {
			return clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("decode calldata for %s", call.CallID), err)
		}
		if err := validateCallPolicy(batch, call, data, opts); err != nil {
			return err
		}
	}
	return validateApprovalOrdering(batch)
}

func validateCallPolicy(batch *Batch, call *Call, data []byte, opts ExecuteOptions) error {
	if call == nil {
		return clierr.New(clierr.CodeInternal, "missing batch call")
	}
	if !common.IsHexAddress(call.Target) {
		return clierr.New(clierr.CodeUsage, "invalid call target address")
	}
	if call.Type == CallTypeApproval {
		return validateApprovalCall(batch, data, opts)
	}
	return nil
}

func validateApprovalCall(batch *Batch, data []byte, opts ExecuteOptions) error {
	if len(data) < 4 || !bytes.Equal(data[:4], execApproveSelector) {
		return clierr.New(clierr.CodeInvalidRoute, "approval call must use ERC20 approve(spender,amount)")
	}
	args, err := execERC20ABI.Methods["approve"].Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return clierr.New(clierr.CodeInvalidRoute, "approval calldata is invalid")
	}
	spender, ok := toAddress(args[0])
	if !ok || spender == (common.Address{}) {
		return clierr.New(clierr.CodeInvalidRoute, "approval call has invalid spender")
	}
	amount, ok := toBigInt(args[1])
	if !ok || amount.Sign() <= 0 {
		return clierr.New(clierr.CodeInvalidRoute, "approval call has invalid amount")
	}
	if opts.AllowMaxApproval {
		return nil
	}
	if batch == nil {
		return clierr.New(clierr.CodeInvalidRoute, "cannot validate approval bounds without batch context")
	}
	requested, ok := parsePositiveBaseUnits(batch.InputAmount)
	if !ok {
		return clierr.New(clierr.CodeInvalidRoute, "cannot validate approval bounds for non-numeric input amount; use --allow-max-approval to override")
	}
	if amount.Cmp(requested) > 0 {
		return clierr.New(
			clierr.CodeInvalidRoute,
			fmt.Sprintf("approval amount %s exceeds requested input amount %s; use --allow-max-approval to override", amount.String(), requested.String()),
		)
	}
	return nil
}

// validateApprovalOrdering enforces approve-precedes-action: an approval may
// never appear after a non-approval call on the same chain. Approval-only
// batches (the standalone approve command) are fine.
func validateApprovalOrdering(batch *Batch) error {
	for i := range batch.Calls {
		if batch.Calls[i].Type != CallTypeApproval {
			continue
		}
		for j := 0; j < i; j++ {
			if batch.Calls[j].Type != CallTypeApproval && strings.EqualFold(batch.Calls[j].ChainID, batch.Calls[i].ChainID) {
				return clierr.New(clierr.CodeInvalidRoute, fmt.Sprintf("approval %s follows the call it should precede", batch.Calls[i].CallID))
			}
		}
	}
	return nil
}

func parsePositiveBaseUnits(value string) (*big.Int, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, false
	}
	parsed, ok := new(big.Int).SetString(v, 10)
	if !ok || parsed.Sign() <= 0 {
		return nil, false
	}
	return parsed, true
}

func toAddress(v any) (common.Address, bool) {
	switch value := v.(type) {
	case common.Address:
		return value, true
	case *common.Address:
		if value == nil {
			return common.Address{}, false
		}
		return *value, true
	default:
		return common.Address{}, false
	}
}

func toBigInt(v any) (*big.Int, bool) {
	switch value := v.(type) {
	case *big.Int:
		if value == nil {
			return nil, false
		}
		return value, true
	case big.Int:
		cpy := value
		return &cpy, true
	default:
		return nil, false
	}
}
