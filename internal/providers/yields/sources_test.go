package yields

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/httpx"
)

func TestVaultStatsSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vault/apr" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"apr": 11.2, "rewardApr": 3.1}`))
	}))
	defer srv.Close()

	source := NewVaultStatsSource(httpx.New(2*time.Second, 0), srv.URL)
	sample, err := source.StakingAPR(context.Background())
	if err != nil {
		t.Fatalf("StakingAPR failed: %v", err)
	}
	if sample.APR != 11.2 || sample.RewardAPR != 3.1 {
		t.Fatalf("unexpected sample %+v", sample)
	}
}

func TestVaultStatsSourceRejectsImplausibleAPR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"apr": -5, "rewardApr": 0}`))
	}))
	defer srv.Close()

	source := NewVaultStatsSource(httpx.New(2*time.Second, 0), srv.URL)
	_, err := source.StakingAPR(context.Background())
	if clierr.CodeOf(err) != clierr.CodeUnavailable {
		t.Fatalf("negative apr must be rejected, got %v", err)
	}
}

func TestPoolsSourcePicksProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"project":"other-dex","symbol":"OTHER","apyBase":99,"apyReward":0},
			{"project":"PerpDex","symbol":"PLP","apyBase":9.5,"apyReward":2.5}
		]}`))
	}))
	defer srv.Close()

	source := NewPoolsSource(httpx.New(2*time.Second, 0), srv.URL, "perpdex")
	sample, err := source.StakingAPR(context.Background())
	if err != nil {
		t.Fatalf("StakingAPR failed: %v", err)
	}
	if sample.APR != 9.5 || sample.RewardAPR != 2.5 {
		t.Fatalf("project match must be case-insensitive, got %+v", sample)
	}
}

func TestPoolsSourceMissingProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	source := NewPoolsSource(httpx.New(2*time.Second, 0), srv.URL, "perpdex")
	if _, err := source.StakingAPR(context.Background()); err == nil {
		t.Fatal("missing project entry must fail")
	}
}
