package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/perpdex-labs/perpctl/internal/version"
)

func isolateRunnerEnv(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("XDG_CACHE_HOME", tmp)
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("perpctl actions list"); got != "actions list" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func TestRunnerVersion(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"version"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != version.CLIVersion {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestRunnerUnknownCommandIsUsageError(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"frobnicate"})
	if code != 2 {
		t.Fatalf("expected usage exit 2, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
}

func TestRunnerDepositRequiresAmount(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"deposit", "--account", "0x1111111111111111111111111111111111111111"})
	if code != 2 {
		t.Fatalf("expected usage exit 2, got %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "amount") {
		t.Fatalf("error should mention the missing amount, got %s", stderr.String())
	}
}

func TestRunnerDepositRequiresAccount(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"deposit", "--amount", "100"})
	if code != 2 {
		t.Fatalf("expected usage exit 2, got %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "account") {
		t.Fatalf("error should mention the missing account, got %s", stderr.String())
	}
}

func TestRunnerActionsListEmptyStore(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"actions", "list", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var out []any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if len(out) != 0 {
		t.Fatalf("fresh store should list no batches, got %v", out)
	}
}

func TestRunnerAPRAggregatesSources(t *testing.T) {
	isolateRunnerEnv(t)
	vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"apr": 10.0, "rewardApr": 2.0}`))
	}))
	defer vault.Close()
	pools := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"project":"perpdex","symbol":"PLP","apyBase":4.0,"apyReward":1.0}]}`))
	}))
	defer pools.Close()
	t.Setenv("PERPCTL_VAULT_STATS_API", vault.URL)
	t.Setenv("PERPCTL_POOLS_API", pools.URL)

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"apr", "--results-only", "--no-cache"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("failed to parse apr report: %v output=%s", err, stdout.String())
	}
	if report["total_apr"] != 17.0 {
		t.Fatalf("total_apr = %v, want 17", report["total_apr"])
	}
	if report["partial"] != false {
		t.Fatalf("no source failed, partial should be false: %v", report)
	}
}

func TestRunnerAPRPartialOnSourceFailure(t *testing.T) {
	isolateRunnerEnv(t)
	pools := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"project":"perpdex","symbol":"PLP","apyBase":4.0,"apyReward":1.0}]}`))
	}))
	defer pools.Close()
	t.Setenv("PERPCTL_VAULT_STATS_API", "http://127.0.0.1:1")
	t.Setenv("PERPCTL_POOLS_API", pools.URL)
	t.Setenv("PERPCTL_RETRIES", "0")
	t.Setenv("PERPCTL_TIMEOUT", "2s")

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"apr", "--results-only", "--no-cache"})
	if code != 0 {
		t.Fatalf("one healthy source must be enough, got exit %d stderr=%s", code, stderr.String())
	}
	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("failed to parse apr report: %v output=%s", err, stdout.String())
	}
	if report["partial"] != true {
		t.Fatalf("failed source should mark the report partial: %v", report)
	}
	if report["total_apr"] != 5.0 {
		t.Fatalf("total_apr = %v, want 5 from the surviving source", report["total_apr"])
	}
}

func TestRunnerPositionsReadsExchange(t *testing.T) {
	isolateRunnerEnv(t)
	exchange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"account":"0x1111111111111111111111111111111111111111","positions":[
			{"pair":"ETH-USD","sizeUsd":10000,"marginUsd":1000,"averagePrice":100,"markPrice":105,"isLong":true,"fundingFee":-1,"borrowFee":-0.5}
		]}`))
	}))
	defer exchange.Close()
	t.Setenv("PERPCTL_PERPS_API", exchange.URL)

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"positions", "--account", "0x1111111111111111111111111111111111111111", "--results-only", "--no-cache"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("failed to parse positions report: %v output=%s", err, stdout.String())
	}
	positions, ok := report["positions"].([]any)
	if !ok || len(positions) != 1 {
		t.Fatalf("expected one position, got %v", report["positions"])
	}
	first, _ := positions[0].(map[string]any)
	// 10x long at entry 100 with full margin backing: liquidation at 91.
	if first["liquidation_price"] != 91.0 {
		t.Fatalf("liquidation_price = %v, want 91", first["liquidation_price"])
	}
}
