package yields

import (
	"context"
	"fmt"
	"math"
	"strings"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/httpx"
	"github.com/perpdex-labs/perpctl/internal/registry"
)

// Sample is one source's view of the staking APR, in percent.
type Sample struct {
	APR       float64
	RewardAPR float64
}

// Source is a single upstream APR feed. Sources fail independently; the
// aggregator tolerates any subset failing.
type Source interface {
	Name() string
	StakingAPR(ctx context.Context) (Sample, error)
}

// VaultStatsSource reads the vault's own stats endpoint (base APR).
type VaultStatsSource struct {
	http    *httpx.Client
	baseURL string
}

func NewVaultStatsSource(httpClient *httpx.Client, baseURL string) *VaultStatsSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = registry.VaultStatsBaseURL
	}
	return &VaultStatsSource{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *VaultStatsSource) Name() string { return "vault-stats" }

func (s *VaultStatsSource) StakingAPR(ctx context.Context) (Sample, error) {
	var resp struct {
		APR       float64 `json:"apr"`
		RewardAPR float64 `json:"rewardApr"`
	}
	if _, err := s.http.GetJSON(ctx, s.baseURL+"/vault/apr", &resp); err != nil {
		return Sample{}, err
	}
	if !validPercent(resp.APR) || !validPercent(resp.RewardAPR) {
		return Sample{}, clierr.New(clierr.CodeUnavailable, "vault stats returned an implausible apr")
	}
	return Sample{APR: resp.APR, RewardAPR: resp.RewardAPR}, nil
}

// PoolsSource reads the public pools index and picks the staking vault's pool
// (reward emissions tracked there, not in vault stats).
type PoolsSource struct {
	http    *httpx.Client
	baseURL string
	project string
}

func NewPoolsSource(httpClient *httpx.Client, baseURL, project string) *PoolsSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = registry.PoolsAPIBaseURL
	}
	if strings.TrimSpace(project) == "" {
		project = "perpdex"
	}
	return &PoolsSource{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), project: project}
}

func (s *PoolsSource) Name() string { return "pools-index" }

func (s *PoolsSource) StakingAPR(ctx context.Context) (Sample, error) {
	var resp struct {
		Data []struct {
			Project   string  `json:"project"`
			Symbol    string  `json:"symbol"`
			APYBase   float64 `json:"apyBase"`
			APYReward float64 `json:"apyReward"`
		} `json:"data"`
	}
	if _, err := s.http.GetJSON(ctx, s.baseURL+"/pools", &resp); err != nil {
		return Sample{}, err
	}
	for _, pool := range resp.Data {
		if !strings.EqualFold(pool.Project, s.project) {
			continue
		}
		if !validPercent(pool.APYBase) || !validPercent(pool.APYReward) {
			continue
		}
		return Sample{APR: pool.APYBase, RewardAPR: pool.APYReward}, nil
	}
	return Sample{}, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("no pool entry for project %s", s.project))
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v < 10_000
}
