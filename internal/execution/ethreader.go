package execution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

// RPCChainReader is the production ChainReader, dialing the step's RPC
// endpoint per query.
type RPCChainReader struct{}

func NewRPCChainReader() *RPCChainReader { return &RPCChainReader{} }

func (r *RPCChainReader) Allowance(ctx context.Context, rpcURL string, token, owner, spender common.Address) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	defer client.Close()

	callData, err := execERC20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack allowance calldata", err)
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{From: owner, To: &token, Data: callData}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read token allowance", err)
	}
	out, err := execERC20ABI.Unpack("allowance", raw)
	if err != nil || len(out) == 0 {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode token allowance", err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, "invalid allowance response")
	}
	return allowance, nil
}
