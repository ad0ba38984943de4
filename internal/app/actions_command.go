package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

func (s *runtimeState) newActionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "actions", Short: "Inspect persisted transaction batches"}

	var status string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted batches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.ensureStore()
			if err != nil {
				return err
			}
			batches, err := store.List(status, limit)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), batches, nil, cacheMetaBypass(), false)
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by batch status (planned|running|completed|failed)")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum batches to return")

	showCmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch with its full call trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return clierr.New(clierr.CodeUsage, "batch id is required")
			}
			store, err := s.ensureStore()
			if err != nil {
				return err
			}
			batch, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), batch, nil, cacheMetaBypass(), false)
		},
	}

	root.AddCommand(listCmd)
	root.AddCommand(showCmd)
	return root
}
