package execution

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution/signer"
)

type ExecuteOptions struct {
	Simulate           bool
	PollInterval       time.Duration
	CallTimeout        time.Duration
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
	AllowMaxApproval   bool
}

func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		Simulate:      true,
		PollInterval:  2 * time.Second,
		CallTimeout:   2 * time.Minute,
		GasMultiplier: 1.2,
	}
}

// SendBatch signs and submits every call in order, persisting the batch after
// each transition. Calls within a batch share a signer, so nonce ordering
// follows call ordering; the first failure stops the batch.
func SendBatch(ctx context.Context, store *Store, batch *Batch, txSigner signer.Signer, opts ExecuteOptions) error {
	if batch == nil {
		return clierr.New(clierr.CodeInternal, "missing batch")
	}
	if txSigner == nil {
		return clierr.New(clierr.CodeSigner, "missing signer")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Minute
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	if err := ValidateBatch(batch, opts); err != nil {
		return err
	}
	batch.Status = BatchStatusRunning
	batch.FromAddress = txSigner.Address().Hex()
	batch.Touch()
	if store != nil {
		_ = store.Save(*batch)
	}

	for i := range batch.Calls {
		call := &batch.Calls[i]
		if call.Status == CallStatusConfirmed {
			continue
		}
		if strings.TrimSpace(call.RPCURL) == "" {
			markCallFailed(batch, call, "missing rpc url")
			if store != nil {
				_ = store.Save(*batch)
			}
			return clierr.New(clierr.CodeUsage, "missing rpc url for batch call")
		}
		client, err := ethclient.DialContext(ctx, call.RPCURL)
		if err != nil {
			markCallFailed(batch, call, err.Error())
			if store != nil {
				_ = store.Save(*batch)
			}
			return clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
		}

		if err := executeCall(ctx, client, txSigner, call, opts); err != nil {
			client.Close()
			markCallFailed(batch, call, err.Error())
			if store != nil {
				_ = store.Save(*batch)
			}
			return err
		}
		client.Close()
		batch.Touch()
		if store != nil {
			_ = store.Save(*batch)
		}
	}
	batch.Status = BatchStatusCompleted
	batch.Touch()
	if store != nil {
		_ = store.Save(*batch)
	}
	return nil
}

func executeCall(ctx context.Context, client *ethclient.Client, txSigner signer.Signer, call *Call, opts ExecuteOptions) error {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	if call.ChainID != "" {
		expected := fmt.Sprintf("eip155:%d", chainID.Int64())
		if !strings.EqualFold(strings.TrimSpace(call.ChainID), expected) {
			return clierr.New(clierr.CodeInvalidRoute, fmt.Sprintf("call chain mismatch: expected %s, got %s", expected, call.ChainID))
		}
	}
	target := common.HexToAddress(call.Target)
	data, err := decodeHex(call.Data)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "decode call data", err)
	}
	value, ok := new(big.Int).SetString(call.Value, 10)
	if !ok {
		return clierr.New(clierr.CodeUsage, "invalid call value")
	}
	msg := ethereum.CallMsg{From: txSigner.Address(), To: &target, Value: value, Data: data}

	if opts.Simulate {
		if _, err := client.CallContract(ctx, msg, nil); err != nil {
			return clierr.Wrap(clierr.CodeBusinessRule, "simulate call (eth_call)", err)
		}
		call.Status = CallStatusSimulated
	}

	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return clierr.Wrap(clierr.CodeBusinessRule, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * opts.GasMultiplier)
	call.GasEstimate = fmt.Sprintf("%d", gasLimit)

	tipCap, err := resolveTipCap(ctx, client, opts.MaxPriorityFeeGwei)
	if err != nil {
		return err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, opts.MaxFeeGwei)
	if err != nil {
		return err
	}

	nonce, err := client.PendingNonceAt(ctx, txSigner.Address())
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := txSigner.SignTx(chainID, tx)
	if err != nil {
		return clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
	}
	call.Status = CallStatusSubmitted
	call.TxHash = signed.Hash().Hex()

	waitCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(waitCtx, signed.Hash())
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				call.Status = CallStatusConfirmed
				return nil
			}
			return clierr.New(clierr.CodeBusinessRule, "transaction reverted on-chain")
		}
		if waitCtx.Err() != nil {
			return clierr.Wrap(clierr.CodeUnavailable, "timed out waiting for receipt", waitCtx.Err())
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			// Transient polling failures are ignored until timeout.
		}
		select {
		case <-waitCtx.Done():
			return clierr.Wrap(clierr.CodeUnavailable, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func resolveTipCap(ctx context.Context, client *ethclient.Client, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse --max-priority-fee-gwei", err)
		}
		return v, nil
	}
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return big.NewInt(2_000_000_000), nil // 2 gwei fallback
	}
	return tipCap, nil
}

func resolveFeeCap(baseFee, tipCap *big.Int, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse --max-fee-gwei", err)
		}
		if v.Cmp(tipCap) < 0 {
			return nil, clierr.New(clierr.CodeUsage, "--max-fee-gwei must be >= --max-priority-fee-gwei")
		}
		return v, nil
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)
	return feeCap, nil
}

func parseGwei(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, fmt.Errorf("empty gwei value")
	}
	rat, ok := new(big.Rat).SetString(clean)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}
	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value must resolve to an integer wei amount")
	}
	return new(big.Int).Set(rat.Num()), nil
}

func markCallFailed(batch *Batch, call *Call, msg string) {
	call.Status = CallStatusFailed
	call.Error = msg
	batch.Status = BatchStatusFailed
	batch.Touch()
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimSpace(v)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}
