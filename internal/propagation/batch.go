package propagation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Job is one propagation of a batch.
type Job struct {
	Propagator *Propagator
	Target     time.Time
}

// Batch propagates independent jobs concurrently, at most limit at a time
// (no limit when limit <= 0). Every job needs its own Propagator. Results
// are in job order. The first failure prevents jobs that have not started
// yet from running; a run in progress cannot be interrupted.
func Batch(ctx context.Context, jobs []Job, limit int) ([]spacecraft.State, error) {
	seen := make(map[*Propagator]bool, len(jobs))
	for i, j := range jobs {
		if seen[j.Propagator] {
			return nil, fmt.Errorf("%w: job %d", ErrSharedPropagator, i)
		}
		seen[j.Propagator] = true
	}

	results := make([]spacecraft.State, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, j := range jobs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			s, err := j.Propagator.Propagate(j.Target)
			if err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
