package app

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/model"
	"github.com/perpdex-labs/perpctl/internal/registry"
)

func (s *runtimeState) newApproveCommand() *cobra.Command {
	var chainArg, assetArg, spenderArg, amountBase, amountDecimal, rpcURL string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a spender only when the current allowance falls short",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, asset, err := parseChainAsset(chainArg, assetArg)
			if err != nil {
				return err
			}
			spender := strings.TrimSpace(spenderArg)
			if !common.IsHexAddress(spender) {
				return clierr.New(clierr.CodeUsage, "--spender must be a valid EVM address")
			}
			if !common.IsHexAddress(asset.Address) {
				return clierr.New(clierr.CodeUsage, "asset must resolve to an ERC20 address")
			}
			amountStr, err := resolveAmount(amountBase, amountDecimal, asset.Decimals)
			if err != nil {
				return err
			}
			required, ok := new(big.Int).SetString(amountStr, 10)
			if !ok || required.Sign() <= 0 {
				return clierr.New(clierr.CodeInvalidAmount, "amount must be a positive integer in base units")
			}
			owner, err := s.requireAccount()
			if err != nil {
				return err
			}
			if !common.IsHexAddress(owner) {
				return clierr.New(clierr.CodeUsage, "account must be a valid EVM address")
			}
			resolvedRPC, err := registry.ResolveRPCURL(s.resolveRPC(rpcURL, chain), chain.EVMChainID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "resolve rpc url", err)
			}

			state, err := s.engine.Approve(context.Background(), execution.ApprovalCheck{
				ChainID:  chain.CAIP2,
				RPCURL:   resolvedRPC,
				Token:    common.HexToAddress(asset.Address),
				Owner:    common.HexToAddress(owner),
				Spender:  common.HexToAddress(spender),
				Required: required,
				Symbol:   asset.Symbol,
			}, s.settings.Simulate)
			if err != nil {
				return err
			}

			report := model.ApprovalReport{
				Token:            state.Token,
				Spender:          state.Spender,
				CurrentAllowance: state.CurrentAllowance.String(),
				RequiredAmount:   state.RequiredAmount.String(),
				NeedsApproval:    state.NeedsApproval,
			}
			var warnings []string
			if !state.NeedsApproval {
				warnings = append(warnings, "allowance already covers the requested amount; no transaction sent")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), report, warnings, cacheMetaBypass(), false)
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "arbitrum", "Chain identifier (slug, CAIP-2, or numeric id)")
	cmd.Flags().StringVar(&assetArg, "asset", "USDC", "Token to approve (symbol or address)")
	cmd.Flags().StringVar(&spenderArg, "spender", "", "Spender contract address")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Required allowance in base units")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Required allowance in decimal units")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint override")
	_ = cmd.MarkFlagRequired("spender")
	return cmd
}
