package mirror

import (
	"context"
	"fmt"
	"time"

	"calmirror/internal/log"
)

// Destination is the mutable calendar the mirror writes into. List must
// return only marker-bearing events; the planner re-checks the marker anyway.
type Destination interface {
	List(ctx context.Context, since, until time.Time) ([]Existing, error)
	Insert(ctx context.Context, ev MirroredEvent) error
	Patch(ctx context.Context, handle string, ev MirroredEvent) error
	Delete(ctx context.Context, handle string) error
}

// ItemError records the failure of a single plan item after retries.
type ItemError struct {
	Key    string
	Action string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Key, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// RunError aggregates all item failures from one executor pass. A non-empty
// aggregate makes the run's overall outcome a failure even when other items
// succeeded.
type RunError struct {
	Items []*ItemError
}

func (e *RunError) Error() string {
	if len(e.Items) == 1 {
		return "1 plan item failed: " + e.Items[0].Error()
	}
	return fmt.Sprintf("%d plan items failed: first: %s", len(e.Items), e.Items[0].Error())
}

// Result counts what the executor did.
type Result struct {
	Inserted int
	Patched  int
	Deleted  int
	Failed   int
}

// Execute applies the plan sequentially, in plan order, against dst. Each
// mutation runs under the retry policy; a non-retryable failure (or exhausted
// retries) aborts only that item and is collected. Cancellation stops the
// pass early; that is safe because the next run re-diffs from current
// destination state.
func Execute(ctx context.Context, dst Destination, plan Plan, policy Policy) (Result, error) {
	var res Result
	var failed []*ItemError

	apply := func(action, key string, op func() error) bool {
		if err := policy.Do(ctx, op); err != nil {
			res.Failed++
			failed = append(failed, &ItemError{Key: key, Action: action, Err: err})
			log.Error("mutation failed", err, "action", action, "key", key)
			return false
		}
		return true
	}

	for _, item := range plan.Inserts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		item := item
		if apply("insert", item.Key, func() error { return dst.Insert(ctx, *item.Desired) }) {
			res.Inserted++
			log.Info("inserted", "key", item.Key)
		}
	}

	for _, item := range plan.Patches {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		item := item
		if apply("patch", item.Key, func() error { return dst.Patch(ctx, item.Handle, *item.Desired) }) {
			res.Patched++
			log.Info("patched", "key", item.Key)
		}
	}

	for _, item := range plan.Deletes {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		item := item
		if apply("delete", item.Key, func() error { return dst.Delete(ctx, item.Handle) }) {
			res.Deleted++
			log.Info("deleted", "key", item.Key, "title", item.Title)
		}
	}

	if len(failed) > 0 {
		return res, &RunError{Items: failed}
	}
	return res, nil
}
