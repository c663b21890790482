package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "notify_jobs"

// Queue is the producer side: engine components push jobs and move on.
// Enqueue failures are the caller's problem to log, never to propagate.
type Queue struct {
	rdc *redis.Client
}

func NewQueue(rdc *redis.Client) *Queue { return &Queue{rdc: rdc} }

func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job.Data)
	if err != nil {
		return err
	}
	return q.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"type":      job.Type,
			"shop":      job.Shop,
			"recipient": job.Recipient,
			"data":      string(data),
		},
	}).Err()
}

// RunWorker tails the job stream and dispatches each entry. Jobs are
// best-effort: a dispatch error is logged and the worker advances.
// The tail starts at "$" so a restart drops queued-while-down jobs
// instead of resending history.
func RunWorker(ctx context.Context, rdc *redis.Client, d *Dispatcher) {
	go func() {
		lastID := "$"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("notify.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			for _, m := range entries {
				job := decodeJob(m)
				outcome, err := d.Dispatch(ctx, job)
				if err != nil {
					zap.L().Warn("notify.dispatch",
						zap.String("type", job.Type),
						zap.String("shop", job.Shop),
						zap.Error(err))
				}
				observe(job.Type, outcome)
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func decodeJob(m redis.XMessage) Job {
	job := Job{Data: map[string]string{}}
	if v, ok := m.Values["type"].(string); ok {
		job.Type = v
	}
	if v, ok := m.Values["shop"].(string); ok {
		job.Shop = v
	}
	if v, ok := m.Values["recipient"].(string); ok {
		job.Recipient = v
	}
	if v, ok := m.Values["data"].(string); ok {
		_ = json.Unmarshal([]byte(v), &job.Data)
	}
	return job
}
