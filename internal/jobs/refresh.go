package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/requestkit/transport"
)

// Enqueuer is the part of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Runner executes a task synchronously. *transport.HTTPEngine is one.
type Runner interface {
	Do(ctx context.Context, task transport.Task) transport.Result
}

// EnqueueRefresh queues a refresh of task. It reports false when a refresh
// for the same identity is already queued.
func EnqueueRefresh(ctx context.Context, client Enqueuer, task transport.Task, queue string, log zerolog.Logger) (bool, error) {
	t, err := NewRefreshTask(task, queue)
	if err != nil {
		return false, err
	}
	info, err := client.EnqueueContext(ctx, t)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Debug().Str("identity", task.Identity).Msg("refresh already queued")
		return false, nil
	}
	if err != nil {
		log.Error().Err(err).Str("identity", task.Identity).Msg("enqueue failed")
		return false, err
	}
	log.Info().
		Str("identity", task.Identity).
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Msg("refresh enqueued")
	return true, nil
}

// NewRefreshHandler runs refresh tasks through r. Failures that will not
// improve on retry skip asynq's retry loop.
func NewRefreshHandler(r Runner, log zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p RefreshPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Error().Err(err).Msg("bad refresh payload")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		task, err := p.Task()
		if err != nil {
			log.Error().Err(err).Msg("bad refresh payload")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		start := time.Now()
		res := r.Do(ctx, task)
		l := log.With().Str("identity", task.Identity).Dur("duration", time.Since(start)).Logger()
		if res.Err != nil {
			if transport.Retryable(res.Err) {
				l.Warn().Err(res.Err).Msg("refresh failed, will retry")
				return res.Err
			}
			l.Error().Err(res.Err).Msg("refresh failed permanently")
			return fmt.Errorf("%v: %w", res.Err, asynq.SkipRetry)
		}
		l.Info().Int("status", res.Status).Bool("not_modified", res.FromCache).Msg("refresh done")
		return nil
	}
}
