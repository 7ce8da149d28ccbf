package validator

import (
	"context"
	"sync"
)

// ValidateBatch runs N independent validations across a bounded worker pool
// and returns exactly one verdict per input, in input order.
//
// Cancellation: once ctx is canceled no new events are dispatched, but
// in-flight validations run to completion and their verdicts are kept.
// Never-dispatched events get a degraded not-valid verdict so the result
// count always matches the input count.
func (p *Pipeline) ValidateBatch(ctx context.Context, reqs []Request) []Verdict {
	if p.metrics != nil {
		p.metrics.BatchSize.Observe(float64(len(reqs)))
	}

	verdicts := make([]Verdict, len(reqs))
	dispatched := make([]bool, len(reqs))

	type job struct {
		idx int
		req Request
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				verdicts[j.idx] = p.Validate(ctx, j.req)
			}
		}()
	}

dispatch:
	for i, req := range reqs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- job{idx: i, req: req}:
			dispatched[i] = true
		}
	}
	close(jobs)
	wg.Wait()

	for i := range reqs {
		if !dispatched[i] {
			verdicts[i] = p.canceledVerdict(reqs[i])
		}
	}
	return verdicts
}
