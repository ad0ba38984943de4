package yields

import (
	"context"
	"sync"
	"time"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
	"github.com/perpdex-labs/perpctl/internal/model"
)

const fetchWorkers = 4

// Aggregate fetches every source concurrently and merges the results with
// partial-failure tolerance: a failed source contributes a source-level error
// string instead of blanking the report. The call fails outright only when
// every source fails.
func Aggregate(ctx context.Context, sources []Source, now func() time.Time) (model.APRReport, error) {
	if len(sources) == 0 {
		return model.APRReport{}, clierr.New(clierr.CodeInternal, "no apr sources configured")
	}
	if now == nil {
		now = time.Now
	}

	type result struct {
		sample Sample
		err    error
	}
	results := make([]result, len(sources))

	workerLimit := fetchWorkers
	if workerLimit > len(sources) {
		workerLimit = len(sources)
	}
	sem := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(index int, source Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[index] = result{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			sample, err := source.StakingAPR(ctx)
			results[index] = result{sample: sample, err: err}
		}(i, source)
	}
	wg.Wait()

	report := model.APRReport{
		Sources:   make([]model.APRSource, 0, len(sources)),
		FetchedAt: now().UTC().Format(time.RFC3339),
	}
	failures := 0
	for i, source := range sources {
		entry := model.APRSource{Name: source.Name()}
		if results[i].err != nil {
			entry.Error = results[i].err.Error()
			failures++
			report.Partial = true
		} else {
			entry.APR = results[i].sample.APR
			entry.RewardAPR = results[i].sample.RewardAPR
			report.TotalAPR += results[i].sample.APR + results[i].sample.RewardAPR
		}
		report.Sources = append(report.Sources, entry)
	}
	if failures == len(sources) {
		return model.APRReport{}, clierr.New(clierr.CodeUnavailable, "all apr sources failed")
	}
	return report, nil
}
