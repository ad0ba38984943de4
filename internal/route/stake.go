package route

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/id"
	"github.com/perpdex-labs/perpctl/internal/registry"
)

// ContractCall is a destination-chain call the route service executes after
// the bridged funds land.
type ContractCall struct {
	Target string `json:"target"`
	Data   string `json:"data"`
	Value  string `json:"value"`
}

type RouteQuoteRequest struct {
	FromChainID     int64
	ToChainID       int64
	FromToken       string
	ToToken         string
	FromAmount      string
	FromAddress     string
	ToAddress       string
	SlippagePct     float64
	ContractCalls   []ContractCall
	DestGasEstimate string
}

type RouteTxRequest struct {
	To      string
	Data    string
	Value   string
	ChainID int64
}

type RouteQuote struct {
	QuoteID            string
	ToToken            string
	ToAmount           string
	ApprovalAddress    string
	TransactionRequest RouteTxRequest
}

// RouteQuoter is the external route construction service (black-box JSON over
// HTTPS). The HTTP implementation lives in internal/providers/router.
type RouteQuoter interface {
	QuoteContractCalls(ctx context.Context, req RouteQuoteRequest) (RouteQuote, error)
}

type StakeRequest struct {
	User            string
	SourceChain     id.Chain
	Asset           id.Asset
	AmountBaseUnits string
	SlippagePct     float64
	RPCURL          string
	Simulate        bool
}

// Route-service slippage default. Distinct from the bridge contract's fixed
// 25 bps floor: this one is negotiable with the route service.
const defaultRouteSlippagePct = 0.5

// PlanCrossChainStake builds the cross-chain stake batch: bridge the source
// token to the staking chain and terminate in the vault's two-call hook,
// approve(vault, amount) then stake(user, token, amount), executed on the
// destination by the route service. The quoted output token must be the
// destination stable token or the plan is rejected.
func PlanCrossChainStake(ctx context.Context, quoter RouteQuoter, reader execution.ChainReader, req StakeRequest) (execution.Batch, error) {
	user := strings.TrimSpace(req.User)
	if !common.IsHexAddress(user) {
		return execution.Batch{}, clierr.New(clierr.CodeInvalidRoute, "stake requires a valid user address")
	}
	if !common.IsHexAddress(req.Asset.Address) {
		return execution.Batch{}, clierr.New(clierr.CodeInvalidRoute, "stake asset must resolve to an ERC20 address")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.AmountBaseUnits), 10)
	if !ok || amount.Sign() <= 0 {
		return execution.Batch{}, clierr.New(clierr.CodeInvalidAmount, "stake amount must be a positive integer in base units")
	}
	if quoter == nil {
		return execution.Batch{}, clierr.New(clierr.CodeInternal, "missing route quoter")
	}
	destChain, ok := id.ChainByEVMID(registry.StakingChainID)
	if !ok {
		return execution.Batch{}, clierr.New(clierr.CodeInternal, "staking chain is not registered")
	}
	vaultAddr, ok := registry.StakingVault(registry.StakingChainID)
	if !ok {
		return execution.Batch{}, clierr.New(clierr.CodeUnsupported, "staking vault is not deployed")
	}
	destToken, ok := id.KnownToken(destChain.CAIP2, "USDC")
	if !ok {
		return execution.Batch{}, clierr.New(clierr.CodeInternal, "destination stable token is not registered")
	}
	if req.SourceChain.EVMChainID == registry.StakingChainID {
		return execution.Batch{}, clierr.New(clierr.CodeInvalidRoute, "stake source chain is already the staking chain; use a direct stake")
	}
	slippage := req.SlippagePct
	if slippage <= 0 {
		slippage = defaultRouteSlippagePct
	}

	hook, err := stakeHookCalls(common.HexToAddress(vaultAddr), common.HexToAddress(destToken.Address), common.HexToAddress(user))
	if err != nil {
		return execution.Batch{}, err
	}

	quote, err := quoter.QuoteContractCalls(ctx, RouteQuoteRequest{
		FromChainID:   req.SourceChain.EVMChainID,
		ToChainID:     registry.StakingChainID,
		FromToken:     req.Asset.Address,
		ToToken:       destToken.Address,
		FromAmount:    amount.String(),
		FromAddress:   user,
		ToAddress:     vaultAddr,
		SlippagePct:   slippage,
		ContractCalls: hook,
	})
	if err != nil {
		return execution.Batch{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(quote.ToToken), destToken.Address) {
		return execution.Batch{}, clierr.New(
			clierr.CodeRouteMismatch,
			fmt.Sprintf("route output token %s does not match staking token %s", quote.ToToken, destToken.Address),
		)
	}
	if strings.TrimSpace(quote.TransactionRequest.To) == "" || strings.TrimSpace(quote.TransactionRequest.Data) == "" {
		return execution.Batch{}, clierr.New(clierr.CodeUnavailable, "route quote missing executable transaction payload")
	}
	if quote.TransactionRequest.ChainID != 0 && quote.TransactionRequest.ChainID != req.SourceChain.EVMChainID {
		return execution.Batch{}, clierr.New(clierr.CodeRouteMismatch, "route transaction chain does not match source chain")
	}

	rpcURL, err := registry.ResolveRPCURL(req.RPCURL, req.SourceChain.EVMChainID)
	if err != nil {
		return execution.Batch{}, clierr.Wrap(clierr.CodeUsage, "resolve rpc url", err)
	}

	batch := execution.NewBatch(execution.NewBatchID(), "stake", req.SourceChain.CAIP2, execution.Constraints{Simulate: req.Simulate})
	batch.FromAddress = common.HexToAddress(user).Hex()
	batch.InputAmount = amount.String()
	batch.Metadata = map[string]any{
		"to_chain_id":    destChain.CAIP2,
		"vault":          common.HexToAddress(vaultAddr).Hex(),
		"staking_token":  destToken.Address,
		"route_quote_id": quote.QuoteID,
	}

	// Allowance-gated approval of the route entry point on the source chain.
	spender := strings.TrimSpace(quote.ApprovalAddress)
	if spender == "" {
		spender = quote.TransactionRequest.To
	}
	if reader != nil && common.IsHexAddress(spender) {
		state, err := execution.CheckApproval(ctx, reader, execution.ApprovalCheck{
			ChainID:  req.SourceChain.CAIP2,
			RPCURL:   rpcURL,
			Token:    common.HexToAddress(req.Asset.Address),
			Owner:    common.HexToAddress(user),
			Spender:  common.HexToAddress(spender),
			Required: amount,
			Symbol:   req.Asset.Symbol,
		})
		if err != nil {
			return execution.Batch{}, err
		}
		if state.NeedsApproval {
			batch.Calls = append(batch.Calls, *state.Approval)
		}
	}

	value := strings.TrimSpace(quote.TransactionRequest.Value)
	if value == "" {
		value = "0"
	}
	batch.Calls = append(batch.Calls, execution.Call{
		CallID:      "stake-route",
		Type:        execution.CallTypeStake,
		Status:      execution.CallStatusPending,
		ChainID:     req.SourceChain.CAIP2,
		RPCURL:      rpcURL,
		Description: "Bridge and stake via route service",
		Target:      common.HexToAddress(quote.TransactionRequest.To).Hex(),
		Data:        ensureHexPrefix(quote.TransactionRequest.Data),
		Value:       value,
	})
	return batch, nil
}

// stakeHookCalls is the post-route hook executed on the destination chain.
// Amounts are left to the route service (it substitutes the landed amount),
// so the hook approves and stakes the full received balance placeholder.
func stakeHookCalls(vault, token, user common.Address) ([]ContractCall, error) {
	// The route service replaces the max-uint placeholder with the amount
	// that actually arrived after fees.
	landed := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	approveData, err := stakeERC20ABI.Pack("approve", vault, landed)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack hook approve calldata", err)
	}
	stakeData, err := stakingVaultABI.Pack("stake", user, token, landed)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack hook stake calldata", err)
	}
	return []ContractCall{
		{Target: token.Hex(), Data: "0x" + common.Bytes2Hex(approveData), Value: "0"},
		{Target: vault.Hex(), Data: "0x" + common.Bytes2Hex(stakeData), Value: "0"},
	}, nil
}

func ensureHexPrefix(v string) string {
	clean := strings.TrimSpace(v)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		return clean
	}
	return "0x" + clean
}

var (
	stakeERC20ABI   = mustRouteABI(registry.ERC20MinimalABI)
	stakingVaultABI = mustRouteABI(registry.StakingVaultABI)
)
