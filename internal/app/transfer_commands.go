package app

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perpdex-labs/perpctl/internal/id"
	"github.com/perpdex-labs/perpctl/internal/model"
	"github.com/perpdex-labs/perpctl/internal/route"
)

func (s *runtimeState) newBridgeCommand() *cobra.Command {
	var fromArg, toArg, assetArg, amountBase, amountDecimal, recipient, rpcURL string
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge tokens between chains through the native bridge router",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromChain, asset, err := parseChainAsset(fromArg, assetArg)
			if err != nil {
				return err
			}
			toChain, err := id.ParseChain(toArg)
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
			dest := strings.TrimSpace(recipient)
			if dest == "" {
				dest = sender
			}
			batch, err := s.engine.Bridge(context.Background(), route.BridgeRouteRequest{
				SourceChain:     fromChain,
				DestChain:       toChain,
				Asset:           asset,
				AmountBaseUnits: amount,
				Recipient:       dest,
			}, sender, s.resolveRPC(rpcURL, fromChain), s.settings.Simulate)
			if err != nil {
				return err
			}
			result := model.BatchResult{Batch: batch, Simulated: s.settings.Simulate}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), false)
		},
	}
	cmd.Flags().StringVar(&fromArg, "from", "", "Source chain")
	cmd.Flags().StringVar(&toArg, "to", "", "Destination chain")
	cmd.Flags().StringVar(&assetArg, "asset", "USDC", "Asset (symbol or address) on the source chain")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Destination recipient (defaults to the sender)")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint override")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (s *runtimeState) newStakeCommand() *cobra.Command {
	var fromArg, assetArg, amountBase, amountDecimal, rpcURL string
	var slippagePct float64
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Bridge to the staking chain and stake in the vault in one route",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromChain, asset, err := parseChainAsset(fromArg, assetArg)
			if err != nil {
				return err
			}
			amount, err := resolveAmount(amountBase, amountDecimal, asset.Decimals)
			if err != nil {
				return err
			}
			user, err := s.requireAccount()
			if err != nil {
				return err
			}
			batch, err := s.engine.Stake(context.Background(), route.StakeRequest{
				User:            user,
				SourceChain:     fromChain,
				Asset:           asset,
				AmountBaseUnits: amount,
				SlippagePct:     slippagePct,
				RPCURL:          s.resolveRPC(rpcURL, fromChain),
				Simulate:        s.settings.Simulate,
			})
			if err != nil {
				return err
			}
			result := model.BatchResult{Batch: batch, Simulated: s.settings.Simulate}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), false)
		},
	}
	cmd.Flags().StringVar(&fromArg, "from", "", "Source chain")
	cmd.Flags().StringVar(&assetArg, "asset", "USDC", "Asset (symbol or address) on the source chain")
	cmd.Flags().StringVar(&amountBase, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&amountDecimal, "amount-decimal", "", "Amount in decimal units")
	cmd.Flags().Float64Var(&slippagePct, "slippage-pct", 0, "Route slippage percent (default 0.5)")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint override")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
