package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/core"
)

// Default polling parameters. Task completion latency is dominated by the
// external synthesis service, so a fixed interval over a bounded horizon is
// used; no backoff or jitter.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// PollOptions configures one polling run. Zero values fall back to the
// defaults above.
//
// OnStatus is a per-tick observer: it is invoked with the observed status on
// every fetch, including the first and including repeats of the same status.
// Callers wanting edge-triggered behavior must de-duplicate themselves.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	OnStatus func(status core.TaskStatus)
}

// PollUntilDone fetches the task repeatedly until it reaches a terminal
// status, the horizon elapses, or ctx is canceled.
//
// A fetch already in flight when the horizon is crossed is allowed to
// complete; the deadline is only checked between fetches, never preempting
// one. No fetch is started whose scheduled time lies past the horizon, so a
// run with timeout T and interval I performs at most ceil(T/I) fetches.
// Fetch errors are not absorbed: any network or HTTP failure aborts the
// poll immediately.
//
// A task that terminates as failed is a normal return, not an error; the
// caller surfaces its ErrorMessage. A horizon elapsing returns an error
// matching api.ErrPollTimeout.
func (c *Client) PollUntilDone(
	ctx context.Context,
	id string,
	opts PollOptions,
) (*core.Task, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	start := time.Now()

	for {
		task, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if opts.OnStatus != nil {
			opts.OnStatus(task.Status)
		}

		if task.Status.Terminal() {
			return task, nil
		}

		if time.Since(start)+interval >= timeout {
			return nil, fmt.Errorf("task %s: %w", id, api.ErrPollTimeout)
		}

		err = sleepOrCancel(ctx, interval)
		if err != nil {
			return nil, err
		}
	}
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("poll canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
