package route

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/id"
	"github.com/perpdex-labs/perpctl/internal/registry"
)

// The bridge contract enforces a fixed 25 bps slippage floor on every
// transfer; minAmount is computed with integer floor division and therefore
// never rounds in the sender's favor.
const bridgeSlippageBps = 25

type BridgeRouteRequest struct {
	SourceChain     id.Chain
	DestChain       id.Chain
	Asset           id.Asset
	AmountBaseUnits string
	Recipient       string
}

// BridgeCallArgs is everything the router's swap(dstChainId, to, amount,
// minAmount) entry point needs, plus the native fee carried as msg.value.
type BridgeCallArgs struct {
	DstBridgeID uint16
	Recipient   [32]byte
	Amount      *big.Int
	MinAmount   *big.Int
	NativeFee   *big.Int
	Router      common.Address
}

// PlanBridgeRoute validates a bridge request and derives the call arguments.
// All validation happens before any I/O: a request that fails here has not
// touched the network.
func PlanBridgeRoute(req BridgeRouteRequest) (BridgeCallArgs, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return BridgeCallArgs{}, clierr.New(clierr.CodeInvalidRoute, "bridge route requires a recipient address")
	}
	if !common.IsHexAddress(recipient) {
		return BridgeCallArgs{}, clierr.New(clierr.CodeInvalidRoute, "bridge recipient must be a valid EVM address")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.AmountBaseUnits), 10)
	if !ok || amount.Sign() <= 0 {
		return BridgeCallArgs{}, clierr.New(clierr.CodeInvalidRoute, "bridge amount must be a positive integer in base units")
	}
	if req.SourceChain.EVMChainID == req.DestChain.EVMChainID {
		return BridgeCallArgs{}, clierr.New(clierr.CodeInvalidRoute, "bridge source and destination chains must differ")
	}
	dstID, ok := registry.BridgeIDFor(req.DestChain.EVMChainID)
	if !ok {
		return BridgeCallArgs{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("chain %s is not a supported bridge destination", req.DestChain.Slug))
	}
	routerAddr, ok := registry.BridgeRouter(req.SourceChain.EVMChainID)
	if !ok {
		return BridgeCallArgs{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("no bridge router deployed on %s", req.SourceChain.Slug))
	}

	// minAmount = amount * 9975 / 10000, floored.
	minAmount := new(big.Int).Mul(amount, big.NewInt(10_000-bridgeSlippageBps))
	minAmount.Div(minAmount, big.NewInt(10_000))

	// 20-byte EVM address left-zero-padded into the 32-byte wire slot.
	var recipient32 [32]byte
	copy(recipient32[:], common.LeftPadBytes(common.HexToAddress(recipient).Bytes(), 32))

	return BridgeCallArgs{
		DstBridgeID: dstID,
		Recipient:   recipient32,
		Amount:      amount,
		MinAmount:   minAmount,
		NativeFee:   registry.NativeBridgeFee(req.SourceChain.EVMChainID),
		Router:      common.HexToAddress(routerAddr),
	}, nil
}

// BridgeCall packs the planned arguments into an executable router call.
func BridgeCall(req BridgeRouteRequest, args BridgeCallArgs, rpcURL string) (execution.Call, error) {
	resolvedRPC, err := registry.ResolveRPCURL(rpcURL, req.SourceChain.EVMChainID)
	if err != nil {
		return execution.Call{}, clierr.Wrap(clierr.CodeUsage, "resolve rpc url", err)
	}
	data, err := bridgeRouterABI.Pack("swap", args.DstBridgeID, args.Recipient, args.Amount, args.MinAmount)
	if err != nil {
		return execution.Call{}, clierr.Wrap(clierr.CodeInternal, "pack bridge swap calldata", err)
	}
	return execution.Call{
		CallID:      "bridge-transfer",
		Type:        execution.CallTypeBridge,
		Status:      execution.CallStatusPending,
		ChainID:     req.SourceChain.CAIP2,
		RPCURL:      resolvedRPC,
		Description: fmt.Sprintf("Bridge transfer to %s", req.DestChain.Slug),
		Target:      args.Router.Hex(),
		Data:        "0x" + common.Bytes2Hex(data),
		Value:       args.NativeFee.String(),
	}, nil
}

var bridgeRouterABI = mustRouteABI(registry.BridgeRouterABI)

func mustRouteABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
