package execution

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

func approveCall(t *testing.T, amount int64) Call {
	t.Helper()
	call, err := BuildApprovalCall(ApprovalCheck{
		ChainID:  "eip155:42161",
		Token:    common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		Spender:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Required: big.NewInt(amount),
		Symbol:   "USDC",
	})
	if err != nil {
		t.Fatalf("build approval call: %v", err)
	}
	return call
}

func actionCall() Call {
	return Call{
		CallID:  "deposit-collateral",
		Type:    CallTypeDeposit,
		Status:  CallStatusPending,
		ChainID: "eip155:42161",
		Target:  "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92",
		Data:    "0xdeadbeef",
		Value:   "0",
	}
}

func TestValidateBatchApproveThenAction(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	batch.InputAmount = "100"
	batch.Calls = append(batch.Calls, approveCall(t, 100), actionCall())
	if err := ValidateBatch(&batch, DefaultExecuteOptions()); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}
}

func TestValidateBatchRejectsTrailingApproval(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	batch.InputAmount = "100"
	batch.Calls = append(batch.Calls, actionCall(), approveCall(t, 100))
	err := ValidateBatch(&batch, DefaultExecuteOptions())
	if err == nil {
		t.Fatal("approval with nothing after it must be rejected")
	}
	if clierr.CodeOf(err) != clierr.CodeInvalidRoute {
		t.Fatalf("expected invalid route code, got %v", err)
	}
}

func TestValidateBatchAllowsApprovalOnly(t *testing.T) {
	batch := NewBatch(NewBatchID(), "approve", "eip155:42161", Constraints{})
	batch.InputAmount = "100"
	batch.Calls = append(batch.Calls, approveCall(t, 100))
	if err := ValidateBatch(&batch, DefaultExecuteOptions()); err != nil {
		t.Fatalf("approval-only batch must be valid: %v", err)
	}
}

func TestValidateBatchRejectsOversizedApproval(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	batch.InputAmount = "100"
	batch.Calls = append(batch.Calls, approveCall(t, 101), actionCall())
	if err := ValidateBatch(&batch, DefaultExecuteOptions()); err == nil {
		t.Fatal("approval above the requested input must be rejected")
	}

	opts := DefaultExecuteOptions()
	opts.AllowMaxApproval = true
	if err := ValidateBatch(&batch, opts); err != nil {
		t.Fatalf("--allow-max-approval must lift the bound: %v", err)
	}
}

func TestValidateBatchRejectsForeignApprovalSelector(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	batch.InputAmount = "100"
	bogus := approveCall(t, 100)
	bogus.Data = "0xdeadbeef"
	batch.Calls = append(batch.Calls, bogus, actionCall())
	if err := ValidateBatch(&batch, DefaultExecuteOptions()); err == nil {
		t.Fatal("approval call with a non-approve selector must be rejected")
	}
}

func TestValidateBatchRejectsEmptyBatch(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	err := ValidateBatch(&batch, DefaultExecuteOptions())
	if err == nil {
		t.Fatal("empty batch must be rejected")
	}
	if clierr.CodeOf(err) != clierr.CodeUsage {
		t.Fatalf("expected usage code, got %v", err)
	}
}

func TestValidateBatchRejectsBadTarget(t *testing.T) {
	batch := NewBatch(NewBatchID(), "deposit", "eip155:42161", Constraints{})
	batch.InputAmount = "100"
	call := actionCall()
	call.Target = "nowhere"
	batch.Calls = append(batch.Calls, call)
	if err := ValidateBatch(&batch, DefaultExecuteOptions()); err == nil {
		t.Fatal("call with invalid target must be rejected")
	}
}
