package orchestrate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/registry"
	"github.com/perpdex-labs/perpctl/internal/route"
)

// BatchSender submits a planned batch through a signing capability. The
// production implementation wraps execution.SendBatch with a local signer.
type BatchSender interface {
	SendBatch(ctx context.Context, batch *execution.Batch) error
}

// Engine is the orchestration context: every collaborator is injected, no
// package-level state. One Engine per CLI session.
type Engine struct {
	reader   execution.ChainReader
	sender   BatchSender
	quoter   execution.PerpsQuoter
	routes   route.RouteQuoter
	throttle *Throttle
	now      func() time.Time

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

type EngineConfig struct {
	Reader   execution.ChainReader
	Sender   BatchSender
	Quoter   execution.PerpsQuoter
	Routes   route.RouteQuoter
	Throttle *Throttle
	Now      func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	throttle := cfg.Throttle
	if throttle == nil {
		throttle = NewThrottle(DefaultRefreshWindow)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		reader:   cfg.Reader,
		sender:   cfg.Sender,
		quoter:   cfg.Quoter,
		routes:   cfg.Routes,
		throttle: throttle,
		now:      now,
		accounts: make(map[string]*sync.Mutex),
	}
}

// Throttle exposes the engine's refresh throttle so read paths (positions,
// balances) can consult the same window the write paths mark.
func (e *Engine) Throttle() *Throttle { return e.throttle }

// Deposit plans and submits a margin deposit: unconditional approve + deposit.
func (e *Engine) Deposit(ctx context.Context, req execution.DepositRequest) (execution.Batch, error) {
	batch, err := execution.BuildDepositBatch(ctx, e.quoter, req)
	if err != nil {
		return execution.Batch{}, err
	}
	return e.submit(ctx, batch)
}

// Withdraw plans and submits a single-call wallet operation.
func (e *Engine) Withdraw(ctx context.Context, req execution.WalletOperationRequest) (execution.Batch, error) {
	batch, err := execution.BuildWalletOperation(ctx, e.quoter, req)
	if err != nil {
		return execution.Batch{}, err
	}
	return e.submit(ctx, batch)
}

// Bridge plans a bridge transfer with a gated approval of the router, then
// submits it.
func (e *Engine) Bridge(ctx context.Context, req route.BridgeRouteRequest, sender, rpcURL string, simulate bool) (execution.Batch, error) {
	args, err := route.PlanBridgeRoute(req)
	if err != nil {
		return execution.Batch{}, err
	}
	if !common.IsHexAddress(strings.TrimSpace(sender)) {
		return execution.Batch{}, clierr.New(clierr.CodeUsage, "bridge requires a valid sender address")
	}
	call, err := route.BridgeCall(req, args, rpcURL)
	if err != nil {
		return execution.Batch{}, err
	}

	batch := execution.NewBatch(execution.NewBatchID(), "bridge", req.SourceChain.CAIP2, execution.Constraints{
		SlippageBps: 25,
		Simulate:    simulate,
	})
	batch.FromAddress = common.HexToAddress(sender).Hex()
	batch.InputAmount = args.Amount.String()
	batch.Metadata = map[string]any{
		"to_chain_id":    req.DestChain.CAIP2,
		"dst_bridge_id":  int64(args.DstBridgeID),
		"min_amount":     args.MinAmount.String(),
		"native_fee_wei": args.NativeFee.String(),
	}

	if e.reader != nil && common.IsHexAddress(req.Asset.Address) {
		state, err := execution.CheckApproval(ctx, e.reader, execution.ApprovalCheck{
			ChainID:  req.SourceChain.CAIP2,
			RPCURL:   call.RPCURL,
			Token:    common.HexToAddress(req.Asset.Address),
			Owner:    common.HexToAddress(sender),
			Spender:  args.Router,
			Required: args.Amount,
			Symbol:   req.Asset.Symbol,
		})
		if err != nil {
			return execution.Batch{}, err
		}
		if state.NeedsApproval {
			batch.Calls = append(batch.Calls, *state.Approval)
		}
	}
	batch.Calls = append(batch.Calls, call)
	return e.submit(ctx, batch)
}

// Stake plans the cross-chain stake route and submits it.
func (e *Engine) Stake(ctx context.Context, req route.StakeRequest) (execution.Batch, error) {
	batch, err := route.PlanCrossChainStake(ctx, e.routes, e.reader, req)
	if err != nil {
		return execution.Batch{}, err
	}
	return e.submit(ctx, batch)
}

// Approve runs the standalone gated approval path: check the allowance and
// submit an approval batch only when it falls short.
func (e *Engine) Approve(ctx context.Context, check execution.ApprovalCheck, simulate bool) (execution.ApprovalState, error) {
	state, err := execution.CheckApproval(ctx, e.reader, check)
	if err != nil {
		return execution.ApprovalState{}, err
	}
	if !state.NeedsApproval {
		return state, nil
	}
	batch := execution.NewBatch(execution.NewBatchID(), "approve", check.ChainID, execution.Constraints{Simulate: simulate})
	batch.FromAddress = check.Owner.Hex()
	batch.InputAmount = check.Required.String()
	batch.Calls = append(batch.Calls, *state.Approval)
	if _, err := e.submitApproval(ctx, batch); err != nil {
		return execution.ApprovalState{}, err
	}
	return state, nil
}

// submit serializes per-account submission (nonce ordering), sends the batch,
// and marks the refresh throttle only on success.
func (e *Engine) submit(ctx context.Context, batch execution.Batch) (execution.Batch, error) {
	if e.sender == nil {
		return execution.Batch{}, clierr.New(clierr.CodeSigner, "no batch sender configured")
	}
	unlock := e.lockAccount(batch.FromAddress)
	defer unlock()

	if err := e.sender.SendBatch(ctx, &batch); err != nil {
		return batch, Classify(err)
	}
	e.throttle.MarkRefreshed(e.now())
	return batch, nil
}

// submitApproval is submit without the refresh mark: a bare approval moves no
// balances, so it does not consume the refresh window.
func (e *Engine) submitApproval(ctx context.Context, batch execution.Batch) (execution.Batch, error) {
	if e.sender == nil {
		return execution.Batch{}, clierr.New(clierr.CodeSigner, "no batch sender configured")
	}
	unlock := e.lockAccount(batch.FromAddress)
	defer unlock()

	if err := e.sender.SendBatch(ctx, &batch); err != nil {
		return batch, Classify(err)
	}
	return batch, nil
}

func (e *Engine) lockAccount(account string) func() {
	key := strings.ToLower(strings.TrimSpace(account))
	e.mu.Lock()
	m, ok := e.accounts[key]
	if !ok {
		m = &sync.Mutex{}
		e.accounts[key] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// LocalSenderFunc adapts a plain function to BatchSender.
type LocalSenderFunc func(ctx context.Context, batch *execution.Batch) error

func (f LocalSenderFunc) SendBatch(ctx context.Context, batch *execution.Batch) error {
	return f(ctx, batch)
}

// StakingDestination reports the chain all stake routes terminate on.
func StakingDestination() int64 { return registry.StakingChainID }
