package execution

import (
	"context"
	"math/big"
	"testing"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/id"
)

type fakeQuoter struct {
	deposit  TxPayload
	wallet   TxPayload
	err      error
	lastOp   string
	lastAmt  *big.Int
	reqCount int
}

func (f *fakeQuoter) DepositPayload(_ context.Context, _ int64, _, _ string, amount *big.Int) (TxPayload, error) {
	f.reqCount++
	f.lastAmt = amount
	if f.err != nil {
		return TxPayload{}, f.err
	}
	return f.deposit, nil
}

func (f *fakeQuoter) WalletOperationPayload(_ context.Context, _ int64, opType, _ string, amount *big.Int) (TxPayload, error) {
	f.reqCount++
	f.lastOp = opType
	f.lastAmt = amount
	if f.err != nil {
		return TxPayload{}, f.err
	}
	return f.wallet, nil
}

func depositRequest(amountBaseUnits string) DepositRequest {
	chain, _ := id.ParseChain("arbitrum")
	return DepositRequest{
		Chain: chain,
		Asset: id.Asset{
			AssetID:  "eip155:42161/erc20:0xaf88d065e77c8cc2239327c5edb3a432268e5831",
			Address:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			Symbol:   "USDC",
			Decimals: 6,
		},
		AmountBaseUnits: amountBaseUnits,
		Sender:          "0x1111111111111111111111111111111111111111",
		Simulate:        true,
	}
}

func TestBuildDepositBatchIsApproveThenDeposit(t *testing.T) {
	quoter := &fakeQuoter{deposit: TxPayload{
		To:    "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92",
		Data:  "0xdeadbeef",
		Value: "0",
	}}
	// 100 USDC at 6 decimals.
	batch, err := BuildDepositBatch(context.Background(), quoter, depositRequest("100000000"))
	if err != nil {
		t.Fatalf("BuildDepositBatch failed: %v", err)
	}
	if len(batch.Calls) != 2 {
		t.Fatalf("deposit batch must have exactly 2 calls, got %d", len(batch.Calls))
	}
	if batch.Calls[0].Type != CallTypeApproval {
		t.Fatalf("first call must be the approval, got %q", batch.Calls[0].Type)
	}
	if batch.Calls[1].Type != CallTypeDeposit {
		t.Fatalf("second call must be the deposit, got %q", batch.Calls[1].Type)
	}

	data, err := decodeHex(batch.Calls[0].Data)
	if err != nil {
		t.Fatalf("decode approve calldata: %v", err)
	}
	args, err := execERC20ABI.Methods["approve"].Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack approve args: %v", err)
	}
	amount := args[1].(*big.Int)
	if amount.String() != "100000000" {
		t.Fatalf("approve amount = %s, want 100000000", amount)
	}
	if batch.InputAmount != "100000000" {
		t.Fatalf("batch input amount = %q", batch.InputAmount)
	}
	if err := ValidateBatch(&batch, DefaultExecuteOptions()); err != nil {
		t.Fatalf("planned deposit batch must pass policy: %v", err)
	}
}

func TestBuildDepositBatchApprovalIsUnconditional(t *testing.T) {
	// No allowance read happens at all: the quoter is the only collaborator.
	quoter := &fakeQuoter{deposit: TxPayload{To: "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92", Data: "0x01", Value: "0"}}
	batch, err := BuildDepositBatch(context.Background(), quoter, depositRequest("1"))
	if err != nil {
		t.Fatalf("BuildDepositBatch failed: %v", err)
	}
	if batch.Calls[0].Type != CallTypeApproval {
		t.Fatal("approval must be present even for trivially small amounts")
	}
	if quoter.reqCount != 1 {
		t.Fatalf("expected a single quoter call, got %d", quoter.reqCount)
	}
}

func TestBuildDepositBatchRejectsBadAmount(t *testing.T) {
	quoter := &fakeQuoter{}
	for _, amount := range []string{"", "0", "-5", "1.5", "abc"} {
		_, err := BuildDepositBatch(context.Background(), quoter, depositRequest(amount))
		if err == nil {
			t.Fatalf("amount %q must be rejected", amount)
		}
		if clierr.CodeOf(err) != clierr.CodeInvalidAmount {
			t.Fatalf("amount %q: expected invalid amount code, got %v", amount, err)
		}
	}
	if quoter.reqCount != 0 {
		t.Fatal("validation failures must not reach the quoter")
	}
}

func TestBuildDepositBatchUnsupportedChain(t *testing.T) {
	req := depositRequest("100000000")
	chain, _ := id.ParseChain("polygon")
	req.Chain = chain
	_, err := BuildDepositBatch(context.Background(), &fakeQuoter{}, req)
	if err == nil {
		t.Fatal("expected error for chain without perps engine")
	}
	if clierr.CodeOf(err) != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported code, got %v", err)
	}
}

func TestBuildWalletOperationSingleCall(t *testing.T) {
	quoter := &fakeQuoter{wallet: TxPayload{
		To:    "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92",
		Data:  "0xfeedface",
		Value: "0",
	}}
	req := depositRequest("25000000")
	batch, err := BuildWalletOperation(context.Background(), quoter, WalletOperationRequest{
		OpType:          "withdraw",
		Chain:           req.Chain,
		Asset:           req.Asset,
		AmountBaseUnits: req.AmountBaseUnits,
		Sender:          req.Sender,
		Simulate:        true,
	})
	if err != nil {
		t.Fatalf("BuildWalletOperation failed: %v", err)
	}
	if len(batch.Calls) != 1 {
		t.Fatalf("wallet operation must be a single call, got %d", len(batch.Calls))
	}
	if batch.Calls[0].Type != CallTypeWithdraw {
		t.Fatalf("unexpected call type %q", batch.Calls[0].Type)
	}
	if quoter.lastOp != "withdraw" {
		t.Fatalf("quoter saw op %q, want withdraw", quoter.lastOp)
	}
}

func TestBuildWalletOperationRejectsUnknownOp(t *testing.T) {
	req := depositRequest("25000000")
	_, err := BuildWalletOperation(context.Background(), &fakeQuoter{}, WalletOperationRequest{
		OpType:          "teleport",
		Chain:           req.Chain,
		Asset:           req.Asset,
		AmountBaseUnits: req.AmountBaseUnits,
		Sender:          req.Sender,
	})
	if err == nil {
		t.Fatal("expected error for unknown wallet operation")
	}
}

func TestCallFromPayloadRejectsBadUpstream(t *testing.T) {
	cases := []TxPayload{
		{To: "not-an-address", Data: "0x01", Value: "0"},
		{To: "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92", Data: "", Value: "0"},
		{To: "0x5E7F20f1d58aD0dFdD21AAcDa8D35e6bE7C58b92", Data: "0x01", Value: "lots"},
	}
	for i, payload := range cases {
		if _, err := callFromPayload(payload, CallTypeDeposit, "x", "eip155:42161", "", ""); err == nil {
			t.Fatalf("case %d: expected rejection of malformed payload", i)
		}
	}
}
