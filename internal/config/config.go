package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath  string
	JSON        bool
	Plain       bool
	Select      string
	ResultsOnly bool
	Account     string
	Timeout     string
	Retries     int
	MaxStale    string
	NoStale     bool
	NoCache     bool
	NoSimulate  bool

	AllowMaxApproval bool
}

type Settings struct {
	OutputMode       string
	SelectFields     []string
	ResultsOnly      bool
	Account          string
	Timeout          time.Duration
	Retries          int
	MaxStale         time.Duration
	NoStale          bool
	CacheEnabled     bool
	CachePath        string
	CacheLockPath    string
	BatchStorePath   string
	BatchLockPath    string
	Simulate         bool
	AllowMaxApproval bool
	SlippageBps      int64
	RefreshWindow    time.Duration
	KeySource        string
	PerpsAPIBase     string
	RouteAPIBase     string
	VaultStatsBase   string
	PoolsAPIBase     string
	RPCURLs          map[string]string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Account  string `yaml:"account"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	Simulate *bool  `yaml:"simulate"`
	Cache    struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Execution struct {
		BatchesPath     string `yaml:"batches_path"`
		BatchesLockPath string `yaml:"batches_lock_path"`
		SlippageBps     *int64 `yaml:"slippage_bps"`
		RefreshWindow   string `yaml:"refresh_window"`
		KeySource       string `yaml:"key_source"`
	} `yaml:"execution"`
	Endpoints struct {
		PerpsAPI   string `yaml:"perps_api"`
		RouteAPI   string `yaml:"route_api"`
		VaultStats string `yaml:"vault_stats"`
		PoolsAPI   string `yaml:"pools_api"`
	} `yaml:"endpoints"`
	RPC map[string]string `yaml:"rpc"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}
	if settings.SlippageBps <= 0 || settings.SlippageBps >= 10_000 {
		settings.SlippageBps = 25
	}
	if settings.RefreshWindow <= 0 {
		settings.RefreshWindow = 3 * time.Second
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	cacheDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:     "json",
		Timeout:        10 * time.Second,
		Retries:        2,
		MaxStale:       5 * time.Minute,
		CacheEnabled:   true,
		CachePath:      cachePath,
		CacheLockPath:  lockPath,
		BatchStorePath: filepath.Join(cacheDir, "batches.db"),
		BatchLockPath:  filepath.Join(cacheDir, "batches.lock"),
		Simulate:       true,
		SlippageBps:    25,
		RefreshWindow:  3 * time.Second,
		RPCURLs:        map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "perpctl", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "perpctl")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Account != "" {
		settings.Account = cfg.Account
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Simulate != nil {
		settings.Simulate = *cfg.Simulate
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.Execution.BatchesPath != "" {
		settings.BatchStorePath = cfg.Execution.BatchesPath
	}
	if cfg.Execution.BatchesLockPath != "" {
		settings.BatchLockPath = cfg.Execution.BatchesLockPath
	}
	if cfg.Execution.SlippageBps != nil {
		settings.SlippageBps = *cfg.Execution.SlippageBps
	}
	if cfg.Execution.RefreshWindow != "" {
		d, err := time.ParseDuration(cfg.Execution.RefreshWindow)
		if err != nil {
			return fmt.Errorf("config execution.refresh_window: %w", err)
		}
		settings.RefreshWindow = d
	}
	if cfg.Execution.KeySource != "" {
		settings.KeySource = strings.ToLower(cfg.Execution.KeySource)
	}
	if cfg.Endpoints.PerpsAPI != "" {
		settings.PerpsAPIBase = cfg.Endpoints.PerpsAPI
	}
	if cfg.Endpoints.RouteAPI != "" {
		settings.RouteAPIBase = cfg.Endpoints.RouteAPI
	}
	if cfg.Endpoints.VaultStats != "" {
		settings.VaultStatsBase = cfg.Endpoints.VaultStats
	}
	if cfg.Endpoints.PoolsAPI != "" {
		settings.PoolsAPIBase = cfg.Endpoints.PoolsAPI
	}
	for slug, rpcURL := range cfg.RPC {
		if settings.RPCURLs == nil {
			settings.RPCURLs = map[string]string{}
		}
		settings.RPCURLs[strings.ToLower(slug)] = rpcURL
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("PERPCTL_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("PERPCTL_ACCOUNT"); v != "" {
		settings.Account = v
	}
	if v := os.Getenv("PERPCTL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("PERPCTL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("PERPCTL_MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := os.Getenv("PERPCTL_NO_STALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.NoStale = b
		}
	}
	if v := os.Getenv("PERPCTL_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("PERPCTL_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("PERPCTL_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("PERPCTL_BATCHES_PATH"); v != "" {
		settings.BatchStorePath = v
	}
	if v := os.Getenv("PERPCTL_BATCHES_LOCK_PATH"); v != "" {
		settings.BatchLockPath = v
	}
	if v := os.Getenv("PERPCTL_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Simulate = b
		}
	}
	if v := os.Getenv("PERPCTL_SLIPPAGE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.SlippageBps = n
		}
	}
	if v := os.Getenv("PERPCTL_REFRESH_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.RefreshWindow = d
		}
	}
	if v := os.Getenv("PERPCTL_KEY_SOURCE"); v != "" {
		settings.KeySource = strings.ToLower(v)
	}
	if v := os.Getenv("PERPCTL_PERPS_API"); v != "" {
		settings.PerpsAPIBase = v
	}
	if v := os.Getenv("PERPCTL_ROUTE_API"); v != "" {
		settings.RouteAPIBase = v
	}
	if v := os.Getenv("PERPCTL_VAULT_STATS_API"); v != "" {
		settings.VaultStatsBase = v
	}
	if v := os.Getenv("PERPCTL_POOLS_API"); v != "" {
		settings.PoolsAPIBase = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.Account) != "" {
		settings.Account = strings.TrimSpace(flags.Account)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.NoSimulate {
		settings.Simulate = false
	}
	if flags.AllowMaxApproval {
		settings.AllowMaxApproval = true
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

// RPCOverride returns the configured RPC URL for a chain slug, if any.
func (s Settings) RPCOverride(slug string) string {
	if s.RPCURLs == nil {
		return ""
	}
	return s.RPCURLs[strings.ToLower(slug)]
}
