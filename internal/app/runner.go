package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/perpdex-labs/perpctl/internal/cache"
	"github.com/perpdex-labs/perpctl/internal/config"
	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/execution"
	"github.com/perpdex-labs/perpctl/internal/execution/signer"
	"github.com/perpdex-labs/perpctl/internal/httpx"
	"github.com/perpdex-labs/perpctl/internal/model"
	"github.com/perpdex-labs/perpctl/internal/orchestrate"
	"github.com/perpdex-labs/perpctl/internal/out"
	"github.com/perpdex-labs/perpctl/internal/providers/perps"
	"github.com/perpdex-labs/perpctl/internal/providers/router"
	"github.com/perpdex-labs/perpctl/internal/providers/yields"
	"github.com/perpdex-labs/perpctl/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner       *Runner
	flags        config.GlobalFlags
	settings     config.Settings
	cache        *cache.Store
	store        *execution.Store
	root         *cobra.Command
	lastCommand  string
	lastWarnings []string
	lastPartial  bool

	engine      *orchestrate.Engine
	perpsClient *perps.Client
	aprSources  []yields.Source
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	state.resetCommandDiagnostics()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.closeStores()
	if err == nil {
		return 0
	}

	state.renderError("", err, state.lastWarnings, state.lastPartial)
	return clierr.ExitCode(err)
}

func (s *runtimeState) closeStores() {
	if s.cache != nil {
		_ = s.cache.Close()
		s.cache = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Perps exchange orchestration CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())

			if s.engine == nil {
				httpClient := httpx.New(settings.Timeout, settings.Retries)
				s.perpsClient = perps.New(httpClient, settings.PerpsAPIBase)
				routeClient := router.New(httpClient, settings.RouteAPIBase)
				s.aprSources = []yields.Source{
					yields.NewVaultStatsSource(httpClient, settings.VaultStatsBase),
					yields.NewPoolsSource(httpClient, settings.PoolsAPIBase, ""),
				}
				s.engine = orchestrate.NewEngine(orchestrate.EngineConfig{
					Reader:   execution.NewRPCChainReader(),
					Sender:   orchestrate.LocalSenderFunc(s.sendBatch),
					Quoter:   s.perpsClient,
					Routes:   routeClient,
					Throttle: orchestrate.NewThrottle(settings.RefreshWindow),
					Now:      s.runner.now,
				})
			}

			if settings.CacheEnabled && shouldOpenCache(s.lastCommand) && s.cache == nil {
				cacheStore, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = cacheStore
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	// Accept snake_case spellings of every flag.
	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.Account, "account", "", "Default account address")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Upstream request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per upstream request")
	cmd.PersistentFlags().StringVar(&s.flags.MaxStale, "max-stale", "", "Maximum stale fallback window after TTL expiry")
	cmd.PersistentFlags().BoolVar(&s.flags.NoStale, "no-stale", false, "Reject stale cache entries")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	cmd.PersistentFlags().BoolVar(&s.flags.NoSimulate, "no-simulate", false, "Skip eth_call simulation before sending")
	cmd.PersistentFlags().BoolVar(&s.flags.AllowMaxApproval, "allow-max-approval", false, "Allow approval amounts above the batch input amount")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newDepositCommand())
	cmd.AddCommand(s.newWithdrawCommand())
	cmd.AddCommand(s.newStakeCommand())
	cmd.AddCommand(s.newBridgeCommand())
	cmd.AddCommand(s.newApproveCommand())
	cmd.AddCommand(s.newPositionsCommand())
	cmd.AddCommand(s.newAPRCommand())
	cmd.AddCommand(s.newActionsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

// sendBatch is the engine's BatchSender: it opens the batch store, builds the
// local signer, and hands off to the execution pipeline.
func (s *runtimeState) sendBatch(ctx context.Context, batch *execution.Batch) error {
	store, err := s.ensureStore()
	if err != nil {
		return err
	}
	txSigner, err := signer.NewLocalSignerFromEnv(s.settings.KeySource)
	if err != nil {
		return clierr.Wrap(clierr.CodeSigner, "load signing key", err)
	}
	opts := execution.DefaultExecuteOptions()
	opts.Simulate = s.settings.Simulate
	opts.AllowMaxApproval = s.settings.AllowMaxApproval
	return execution.SendBatch(ctx, store, batch, txSigner, opts)
}

func (s *runtimeState) ensureStore() (*execution.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	store, err := execution.OpenStore(s.settings.BatchStorePath, s.settings.BatchLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open batch store", err)
	}
	s.store = store
	return store, nil
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus, partial bool) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Cache:     cacheStatus,
			Partial:   partial,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string, partial bool) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		typ = errorType(cErr.Code)
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Cache:     cacheMetaBypass(),
			Partial:   partial,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func errorType(code clierr.Code) string {
	switch code {
	case clierr.CodeUsage:
		return "usage_error"
	case clierr.CodeAuth:
		return "auth_error"
	case clierr.CodeRateLimited:
		return "rate_limited"
	case clierr.CodePartial:
		return "partial_results"
	case clierr.CodeInvalidAmount:
		return "invalid_amount"
	case clierr.CodeUnsupported:
		return "unsupported"
	case clierr.CodeInvalidRoute:
		return "invalid_route"
	case clierr.CodeRouteMismatch:
		return "route_mismatch"
	case clierr.CodeUserRejected:
		return "user_rejected"
	case clierr.CodeBusinessRule:
		return "business_rule"
	case clierr.CodeUnavailable:
		return "upstream_unavailable"
	case clierr.CodeSigner:
		return "signer_error"
	default:
		return "internal_error"
	}
}

// runCachedRead serves read commands through the TTL cache: fresh hits are
// served directly, a fetch failure falls back to a stale entry within the
// max-stale budget, and successful fetches are written back.
func (s *runtimeState) runCachedRead(commandPath, key string, ttl time.Duration, fetch func(ctx context.Context) (any, []string, bool, error)) error {
	s.resetCommandDiagnostics()
	cacheStatus := cacheMetaMiss()
	warnings := []string{}
	var staleData any
	staleAvailable := false
	var staleStatus model.CacheStatus

	if s.settings.CacheEnabled && s.cache != nil {
		cached, err := s.cache.Get(key, s.settings.MaxStale)
		if err == nil && cached.Hit {
			entryStatus := model.CacheStatus{Status: "hit", AgeMS: cached.Age.Milliseconds(), Stale: cached.Stale}
			var data any
			if jsonErr := json.Unmarshal(cached.Value, &data); jsonErr == nil {
				if !cached.Stale {
					s.captureCommandDiagnostics(warnings, false)
					return s.emitSuccess(commandPath, data, warnings, entryStatus, false)
				}
				if !cached.TooStale {
					staleData = data
					staleAvailable = true
					staleStatus = entryStatus
				}
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	data, fetchWarnings, partial, err := fetch(ctx)
	warnings = append(warnings, fetchWarnings...)
	s.captureCommandDiagnostics(warnings, partial)
	if err != nil {
		if staleAvailable && staleFallbackAllowed(err) && !s.settings.NoStale {
			warnings = append(warnings, "upstream fetch failed; serving stale data within max-stale budget")
			s.captureCommandDiagnostics(warnings, false)
			return s.emitSuccess(commandPath, staleData, warnings, staleStatus, false)
		}
		return err
	}

	if s.settings.CacheEnabled && s.cache != nil {
		if payload, err := json.Marshal(data); err == nil {
			_ = s.cache.Set(key, payload, ttl)
			cacheStatus = model.CacheStatus{Status: "write", AgeMS: 0, Stale: false}
		}
	}

	s.captureCommandDiagnostics(warnings, partial)
	return s.emitSuccess(commandPath, data, warnings, cacheStatus, partial)
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func cacheMetaMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss", AgeMS: 0, Stale: false}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func staleFallbackAllowed(err error) bool {
	cErr, ok := clierr.As(err)
	if !ok {
		return false
	}
	return cErr.Code == clierr.CodeUnavailable || cErr.Code == clierr.CodeRateLimited
}

func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "positions", "apr":
		return true
	default:
		return false
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func (s *runtimeState) resetCommandDiagnostics() {
	s.lastWarnings = nil
	s.lastPartial = false
}

func (s *runtimeState) captureCommandDiagnostics(warnings []string, partial bool) {
	if len(warnings) == 0 {
		s.lastWarnings = nil
	} else {
		s.lastWarnings = append([]string(nil), warnings...)
	}
	s.lastPartial = partial
}
