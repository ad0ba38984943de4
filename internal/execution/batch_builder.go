package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/id"
	"github.com/perpdex-labs/perpctl/internal/registry"
)

// TxPayload is the raw transaction descriptor a quoting endpoint hands back:
// target, calldata, and native value, ready to drop into a Call.
type TxPayload struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// PerpsQuoter supplies exchange calldata for margin operations. The HTTP
// implementation lives in internal/providers/perps.
type PerpsQuoter interface {
	DepositPayload(ctx context.Context, chainID int64, account, token string, amount *big.Int) (TxPayload, error)
	WalletOperationPayload(ctx context.Context, chainID int64, opType, account string, amount *big.Int) (TxPayload, error)
}

type DepositRequest struct {
	Chain           id.Chain
	Asset           id.Asset
	AmountBaseUnits string
	Sender          string
	RPCURL          string
	Simulate        bool
}

type WalletOperationRequest struct {
	OpType          string
	Chain           id.Chain
	Asset           id.Asset
	AmountBaseUnits string
	Sender          string
	RPCURL          string
	Simulate        bool
}

// BuildDepositBatch plans a margin deposit as exactly two calls: an
// unconditional exact-amount approve of the engine, then the deposit call
// quoted by the exchange. The approve is issued even when allowance already
// covers the amount; a redundant approve costs gas but can never fail the
// deposit, while a skipped one can. Callers wanting the allowance-gated
// variant go through CheckApproval instead.
func BuildDepositBatch(ctx context.Context, quoter PerpsQuoter, req DepositRequest) (Batch, error) {
	sender, tokenAddr, amount, rpcURL, err := normalizeEngineInputs(req.Sender, req.Asset, req.AmountBaseUnits, req.RPCURL, req.Chain)
	if err != nil {
		return Batch{}, err
	}
	if quoter == nil {
		return Batch{}, clierr.New(clierr.CodeInternal, "missing perps quoter")
	}
	engineAddr, ok := registry.PerpsEngine(req.Chain.EVMChainID)
	if !ok {
		return Batch{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("perps engine is not deployed on %s", req.Chain.Slug))
	}
	engine := common.HexToAddress(engineAddr)

	payload, err := quoter.DepositPayload(ctx, req.Chain.EVMChainID, sender.Hex(), tokenAddr.Hex(), amount)
	if err != nil {
		return Batch{}, err
	}
	depositCall, err := callFromPayload(payload, CallTypeDeposit, "deposit-collateral", req.Chain.CAIP2, rpcURL, "Deposit collateral into perps engine")
	if err != nil {
		return Batch{}, err
	}

	approval, err := BuildApprovalCall(ApprovalCheck{
		ChainID:  req.Chain.CAIP2,
		RPCURL:   rpcURL,
		Token:    tokenAddr,
		Owner:    sender,
		Spender:  engine,
		Required: amount,
		Symbol:   req.Asset.Symbol,
	})
	if err != nil {
		return Batch{}, err
	}

	batch := NewBatch(NewBatchID(), "deposit", req.Chain.CAIP2, Constraints{Simulate: req.Simulate})
	batch.FromAddress = sender.Hex()
	batch.InputAmount = amount.String()
	batch.Metadata = map[string]any{
		"asset_id": req.Asset.AssetID,
		"engine":   engine.Hex(),
	}
	batch.Calls = append(batch.Calls, approval, depositCall)
	return batch, nil
}

// BuildWalletOperation plans a single-call wallet operation (withdraw, claim)
// from the exchange's wallet-operation endpoint. No approval: the engine moves
// its own balances.
func BuildWalletOperation(ctx context.Context, quoter PerpsQuoter, req WalletOperationRequest) (Batch, error) {
	opType := strings.ToLower(strings.TrimSpace(req.OpType))
	if opType != string(CallTypeWithdraw) && opType != "claim" {
		return Batch{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported wallet operation %q", req.OpType))
	}
	sender, tokenAddr, amount, rpcURL, err := normalizeEngineInputs(req.Sender, req.Asset, req.AmountBaseUnits, req.RPCURL, req.Chain)
	if err != nil {
		return Batch{}, err
	}
	if quoter == nil {
		return Batch{}, clierr.New(clierr.CodeInternal, "missing perps quoter")
	}
	if _, ok := registry.PerpsEngine(req.Chain.EVMChainID); !ok {
		return Batch{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("perps engine is not deployed on %s", req.Chain.Slug))
	}

	payload, err := quoter.WalletOperationPayload(ctx, req.Chain.EVMChainID, opType, sender.Hex(), amount)
	if err != nil {
		return Batch{}, err
	}
	call, err := callFromPayload(payload, CallTypeWithdraw, opType+"-collateral", req.Chain.CAIP2, rpcURL, "Withdraw collateral from perps engine")
	if err != nil {
		return Batch{}, err
	}

	batch := NewBatch(NewBatchID(), opType, req.Chain.CAIP2, Constraints{Simulate: req.Simulate})
	batch.FromAddress = sender.Hex()
	batch.InputAmount = amount.String()
	batch.Metadata = map[string]any{
		"asset_id": req.Asset.AssetID,
		"token":    tokenAddr.Hex(),
	}
	batch.Calls = append(batch.Calls, call)
	return batch, nil
}

func normalizeEngineInputs(sender string, asset id.Asset, amountBaseUnits, rpcOverride string, chain id.Chain) (common.Address, common.Address, *big.Int, string, error) {
	from := strings.TrimSpace(sender)
	if !common.IsHexAddress(from) {
		return common.Address{}, common.Address{}, nil, "", clierr.New(clierr.CodeUsage, "operation requires a valid sender address")
	}
	if !common.IsHexAddress(asset.Address) {
		return common.Address{}, common.Address{}, nil, "", clierr.New(clierr.CodeUsage, "asset must resolve to an ERC20 address")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(amountBaseUnits), 10)
	if !ok || amount.Sign() <= 0 {
		return common.Address{}, common.Address{}, nil, "", clierr.New(clierr.CodeInvalidAmount, "amount must be a positive integer in base units")
	}
	rpcURL, err := registry.ResolveRPCURL(rpcOverride, chain.EVMChainID)
	if err != nil {
		return common.Address{}, common.Address{}, nil, "", clierr.Wrap(clierr.CodeUsage, "resolve rpc url", err)
	}
	return common.HexToAddress(from), common.HexToAddress(asset.Address), amount, rpcURL, nil
}

func callFromPayload(payload TxPayload, callType CallType, callID, chainID, rpcURL, description string) (Call, error) {
	if !common.IsHexAddress(payload.To) {
		return Call{}, clierr.New(clierr.CodeBusinessRule, "quoting endpoint returned an invalid target address")
	}
	data := strings.TrimSpace(payload.Data)
	if data == "" || !strings.HasPrefix(data, "0x") {
		return Call{}, clierr.New(clierr.CodeBusinessRule, "quoting endpoint returned invalid calldata")
	}
	value := strings.TrimSpace(payload.Value)
	if value == "" {
		value = "0"
	}
	if _, ok := new(big.Int).SetString(value, 10); !ok {
		return Call{}, clierr.New(clierr.CodeBusinessRule, "quoting endpoint returned an invalid native value")
	}
	return Call{
		CallID:      callID,
		Type:        callType,
		Status:      CallStatusPending,
		ChainID:     chainID,
		RPCURL:      rpcURL,
		Description: description,
		Target:      common.HexToAddress(payload.To).Hex(),
		Data:        data,
		Value:       value,
	}, nil
}
