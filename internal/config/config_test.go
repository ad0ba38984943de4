package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nretries: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PERPCTL_OUTPUT", "json")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadExecutionSection(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	yaml := "" +
		"account: \"0x1111111111111111111111111111111111111111\"\n" +
		"execution:\n" +
		"  slippage_bps: 40\n" +
		"  refresh_window: 5s\n" +
		"  key_source: keystore\n" +
		"rpc:\n" +
		"  Arbitrum: https://rpc.example/arb\n"
	if err := os.WriteFile(configPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.SlippageBps != 40 {
		t.Fatalf("slippage_bps = %d, want 40", settings.SlippageBps)
	}
	if settings.RefreshWindow != 5*time.Second {
		t.Fatalf("refresh_window = %v, want 5s", settings.RefreshWindow)
	}
	if settings.KeySource != "keystore" {
		t.Fatalf("key_source = %q", settings.KeySource)
	}
	if settings.RPCOverride("arbitrum") != "https://rpc.example/arb" {
		t.Fatalf("rpc override lookup must be case-insensitive, got %q", settings.RPCOverride("arbitrum"))
	}
	if settings.Account != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("account = %q", settings.Account)
	}
}

func TestLoadDefaultsClampInvalidValues(t *testing.T) {
	t.Setenv("PERPCTL_SLIPPAGE_BPS", "20000")
	t.Setenv("PERPCTL_REFRESH_WINDOW", "-3s")
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.SlippageBps != 25 {
		t.Fatalf("out-of-range slippage must reset to 25, got %d", settings.SlippageBps)
	}
	if settings.RefreshWindow != 3*time.Second {
		t.Fatalf("negative refresh window must reset to 3s, got %v", settings.RefreshWindow)
	}
}
