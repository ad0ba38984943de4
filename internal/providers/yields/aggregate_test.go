package yields

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

type stubSource struct {
	name   string
	sample Sample
	err    error
	delay  time.Duration

	inFlight    int32
	maxInFlight int32
	mu          sync.Mutex
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) StakingAPR(ctx context.Context) (Sample, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	s.mu.Lock()
	if cur > s.maxInFlight {
		s.maxInFlight = cur
	}
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		}
	}
	return s.sample, s.err
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
}

func TestAggregateMergesAllSources(t *testing.T) {
	sources := []Source{
		&stubSource{name: "vault-stats", sample: Sample{APR: 12.5}},
		&stubSource{name: "pools-index", sample: Sample{APR: 0, RewardAPR: 4.25}},
	}
	report, err := Aggregate(context.Background(), sources, fixedNow)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if report.Partial {
		t.Fatal("no source failed, report must not be partial")
	}
	if report.TotalAPR != 16.75 {
		t.Fatalf("TotalAPR = %v, want 16.75", report.TotalAPR)
	}
	if len(report.Sources) != 2 {
		t.Fatalf("expected 2 source entries, got %d", len(report.Sources))
	}
}

func TestAggregateKeepsSuccessesOnPartialFailure(t *testing.T) {
	sources := []Source{
		&stubSource{name: "vault-stats", err: errors.New("upstream timeout")},
		&stubSource{name: "pools-index", sample: Sample{APR: 7.0, RewardAPR: 1.0}},
	}
	report, err := Aggregate(context.Background(), sources, fixedNow)
	if err != nil {
		t.Fatalf("one healthy source must be enough: %v", err)
	}
	if !report.Partial {
		t.Fatal("a failed source must mark the report partial")
	}
	if report.TotalAPR != 8.0 {
		t.Fatalf("TotalAPR = %v, want 8.0 from the surviving source", report.TotalAPR)
	}
	var failed, ok int
	for _, src := range report.Sources {
		switch src.Name {
		case "vault-stats":
			failed++
			if !strings.Contains(src.Error, "upstream timeout") {
				t.Fatalf("failed source must carry its error, got %q", src.Error)
			}
		case "pools-index":
			ok++
			if src.Error != "" || src.APR != 7.0 {
				t.Fatalf("healthy source entry corrupted: %+v", src)
			}
		}
	}
	if failed != 1 || ok != 1 {
		t.Fatalf("both sources must appear in the report, got %d failed / %d ok", failed, ok)
	}
}

func TestAggregateFailsWhenAllSourcesFail(t *testing.T) {
	sources := []Source{
		&stubSource{name: "vault-stats", err: errors.New("boom")},
		&stubSource{name: "pools-index", err: errors.New("also boom")},
	}
	_, err := Aggregate(context.Background(), sources, fixedNow)
	if clierr.CodeOf(err) != clierr.CodeUnavailable {
		t.Fatalf("all sources down must be unavailable, got %v", err)
	}
}

func TestAggregateRequiresSources(t *testing.T) {
	_, err := Aggregate(context.Background(), nil, fixedNow)
	if err == nil {
		t.Fatal("empty source list must fail")
	}
}

func TestAggregateRunsSourcesConcurrently(t *testing.T) {
	a := &stubSource{name: "a", sample: Sample{APR: 1}, delay: 50 * time.Millisecond}
	b := &stubSource{name: "b", sample: Sample{APR: 2}, delay: 50 * time.Millisecond}

	start := time.Now()
	report, err := Aggregate(context.Background(), []Source{a, b}, fixedNow)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 90*time.Millisecond {
		t.Fatalf("sources should overlap, took %v", elapsed)
	}
	if report.TotalAPR != 3 {
		t.Fatalf("TotalAPR = %v, want 3", report.TotalAPR)
	}
}
