package linker

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionOutcome is the final result of one session run by a Driver.
type SessionOutcome struct {
	Results []any
	Err     error
}

// Driver runs many call sessions cooperatively. Pending operations execute
// concurrently; sessions are resumed one at a time, in the order their
// operations complete.
type Driver struct {
	// MaxPending bounds concurrently executing operations. Waits for a
	// borrowed host context are not counted. 0 means unbounded.
	MaxPending int
}

type completion struct {
	idx int
	yr  YieldResult
}

// Run steps every session to completion. The returned error combines the
// sessions' errors; outcomes are reported per session in input order. When
// ctx is done, unfinished sessions are canceled.
func (d *Driver) Run(ctx context.Context, sessions ...*CallSession) ([]SessionOutcome, error) {
	outcomes := make([]SessionOutcome, len(sessions))
	completions := make(chan completion, len(sessions))

	g, gctx := errgroup.WithContext(ctx)
	var sem chan struct{}
	if d.MaxPending > 0 {
		sem = make(chan struct{}, d.MaxPending)
	}

	pending := 0
	finished := make([]bool, len(sessions))

	advance := func(i int, yr *YieldResult) {
		sr, err := sessions[i].Step(ctx, yr)
		if err != nil && ctx.Err() != nil {
			// the task may still hold the borrow; unwind it before reporting
			_ = sessions[i].Cancel(context.WithoutCancel(ctx))
		}
		if err == nil && sr.Status == StepContinue {
			pending++
			op := sr.PendingOp
			_, borrow := op.(borrowWait)
			g.Go(func() error {
				if sem != nil && !borrow {
					select {
					case sem <- struct{}{}:
						defer func() { <-sem }()
					case <-gctx.Done():
						completions <- completion{idx: i, yr: YieldResult{Error: gctx.Err()}}
						return nil
					}
				}
				v, opErr := op.Execute(gctx)
				completions <- completion{idx: i, yr: YieldResult{Value: v, Error: opErr}}
				return nil
			})
			return
		}
		finished[i] = true
		outcomes[i] = SessionOutcome{Results: sr.Results, Err: err}
	}

	for i := range sessions {
		advance(i, nil)
	}

	for pending > 0 {
		select {
		case c := <-completions:
			pending--
			advance(c.idx, &c.yr)
		case <-ctx.Done():
			Logger().Debug("driver canceled", zap.Int("pending", pending))
			for i, cs := range sessions {
				if !finished[i] {
					_ = cs.Cancel(context.WithoutCancel(ctx))
					outcomes[i] = SessionOutcome{Err: ctx.Err()}
				}
			}
			_ = g.Wait()
			return outcomes, ctx.Err()
		}
	}
	_ = g.Wait()

	var errs error
	for _, o := range outcomes {
		errs = multierr.Append(errs, o.Err)
	}
	return outcomes, errs
}
