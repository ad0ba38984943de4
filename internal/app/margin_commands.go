package app

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/id"
	"github.com/perpdex-labs/perpctl/internal/model"
)

func (s *runtimeState) newDepositCommand() *cobra.Command {
	var chainArg, assetArg, amountBase, amountDecimal, rpcURL string
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit collateral into the perps engine (approve + deposit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, asset, err := parseChainAsset(chainArg, assetArg)
			if err != nil {
				return err
			}
			amount, err := resolveAmount(amountBase, amountDecimal, asset.Decimals)
			if err != nil {
				return err
			}
			sender, err := s.requireAccount()
			if err != nil {
				return err
			}
			batch, err := s.engine.Deposit(context.Background(), execution.DepositRequest{
				Chain:           chain,
				Asset:           asset,
				AmountBaseUnits: amount,
				Sender:          sender,
				RPCURL:          s.resolveRPC(rpcURL, chain),
				Simulate:        s.settings.Simulate,
			})
			if err != nil {
				return err
			}
			result := model.BatchResult{Batch: batch, Simulated: s.settings.Simulate}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), false)
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "arbitrum", "Chain identifier (slug, CAIP-2, or numeric id)")
	cmd.Flags().StringVar(&assetArg, "asset", "USDC", "Collateral asset (symbol or address)")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint override")
	return cmd
}

func (s *runtimeState) newWithdrawCommand() *cobra.Command {
	var chainArg, assetArg, amountBase, amountDecimal, rpcURL, opType string
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw collateral from the perps engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, asset, err := parseChainAsset(chainArg, assetArg)
			if err != nil {
				return err
			}
			amount, err := resolveAmount(amountBase, amountDecimal, asset.Decimals)
			if err != nil {
				return err
			}
			sender, err := s.requireAccount()
			if err != nil {
				return err
			}
			batch, err := s.engine.Withdraw(context.Background(), execution.WalletOperationRequest{
				OpType:          opType,
				Chain:           chain,
				Asset:           asset,
				AmountBaseUnits: amount,
				Sender:          sender,
				RPCURL:          s.resolveRPC(rpcURL, chain),
				Simulate:        s.settings.Simulate,
			})
			if err != nil {
				return err
			}
			result := model.BatchResult{Batch: batch, Simulated: s.settings.Simulate}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), false)
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "arbitrum", "Chain identifier (slug, CAIP-2, or numeric id)")
	cmd.Flags().StringVar(&assetArg, "asset", "USDC", "Collateral asset (symbol or address)")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint override")
	cmd.Flags().StringVar(&opType, "type", "withdraw", "Wallet operation type (withdraw|claim)")
	return cmd
}

func (s *runtimeState) requireAccount() (string, error) {
	account := strings.TrimSpace(s.settings.Account)
	if account == "" {
		return "", clierr.New(clierr.CodeUsage, "--account is required (flag, config, or PERPCTL_ACCOUNT)")
	}
	return account, nil
}

func (s *runtimeState) resolveRPC(flagValue string, chain id.Chain) string {
	if strings.TrimSpace(flagValue) != "" {
		return strings.TrimSpace(flagValue)
	}
	return s.settings.RPCOverride(chain.Slug)
}

func parseChainOnly(chainArg string) (id.Chain, error) {
	if strings.TrimSpace(chainArg) == "" {
		return id.Chain{}, clierr.New(clierr.CodeUsage, "--chain is required")
	}
	return id.ParseChain(chainArg)
}

func parseChainAsset(chainArg, assetArg string) (id.Chain, id.Asset, error) {
	if strings.TrimSpace(chainArg) == "" {
		return id.Chain{}, id.Asset{}, clierr.New(clierr.CodeUsage, "--chain is required")
	}
	if strings.TrimSpace(assetArg) == "" {
		return id.Chain{}, id.Asset{}, clierr.New(clierr.CodeUsage, "--asset is required")
	}
	chain, err := id.ParseChain(chainArg)
	if err != nil {
		return id.Chain{}, id.Asset{}, err
	}
	asset, err := id.ParseAsset(assetArg, chain)
	if err != nil {
		return id.Chain{}, id.Asset{}, err
	}
	return chain, asset, nil
}

// resolveAmount accepts either a base-unit integer or a decimal amount, never
// both, and returns base units.
func resolveAmount(base, decimal string, decimals int) (string, error) {
	base = strings.TrimSpace(base)
	decimal = strings.TrimSpace(decimal)
	switch {
	case base != "" && decimal != "":
		return "", clierr.New(clierr.CodeUsage, "provide --amount or --amount-decimal, not both")
	case base != "":
		return base, nil
	case decimal != "":
		units, err := id.ToBaseUnits(decimal, decimals)
		if err != nil {
			return "", err
		}
		return units.String(), nil
	default:
		return "", clierr.New(clierr.CodeUsage, "--amount or --amount-decimal is required")
	}
}
