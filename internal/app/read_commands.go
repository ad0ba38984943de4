package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/perpdex-labs/perpctl/internal/cache"
	"github.com/perpdex-labs/perpctl/internal/model"
	"github.com/perpdex-labs/perpctl/internal/providers/yields"
	"github.com/perpdex-labs/perpctl/internal/risk"
)

func (s *runtimeState) newPositionsCommand() *cobra.Command {
	var chainArg, accountArg string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions with liquidation prices and fees",
		RunE: func(cmd *cobra.Command, args []string) error {
			account := accountArg
			if account == "" {
				var err error
				account, err = s.requireAccount()
				if err != nil {
					return err
				}
			}
			chain, err := parseChainOnly(chainArg)
			if err != nil {
				return err
			}

			key := cache.Key("positions", chain.CAIP2, account)
			// The cache TTL doubles as the refresh window: a request inside the
			// window is served from cache instead of queued behind a fetch.
			ttl := s.settings.RefreshWindow
			if ttl <= 0 {
				ttl = 3 * time.Second
			}
			return s.runCachedRead(trimRootPath(cmd.CommandPath()), key, ttl, func(ctx context.Context) (any, []string, bool, error) {
				positions, err := s.perpsClient.Positions(ctx, chain.EVMChainID, account)
				if err != nil {
					return nil, nil, false, err
				}
				views := make([]risk.View, 0, len(positions))
				for _, p := range positions {
					views = append(views, risk.FormatPosition(p))
				}
				report := model.PositionReport{
					Account:   account,
					ChainID:   chain.CAIP2,
					Positions: views,
					FetchedAt: s.runner.now().UTC().Format(time.RFC3339),
				}
				return report, nil, false, nil
			})
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "arbitrum", "Chain identifier (slug, CAIP-2, or numeric id)")
	cmd.Flags().StringVar(&accountArg, "for", "", "Account to inspect (defaults to --account)")
	return cmd
}

func (s *runtimeState) newAPRCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apr",
		Short: "Aggregate staking APR across sources (partial-failure tolerant)",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := cache.Key("apr", "staking")
			return s.runCachedRead(trimRootPath(cmd.CommandPath()), key, 60*time.Second, func(ctx context.Context) (any, []string, bool, error) {
				report, err := yields.Aggregate(ctx, s.aprSources, s.runner.now)
				if err != nil {
					return nil, nil, false, err
				}
				var warnings []string
				for _, src := range report.Sources {
					if src.Error != "" {
						warnings = append(warnings, fmt.Sprintf("apr source %s failed: %s", src.Name, src.Error))
					}
				}
				return report, warnings, report.Partial, nil
			})
		},
	}
	return cmd
}
