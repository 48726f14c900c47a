// Package redis implements ports.JobQueue and ports.LiveStatusStore over
// Redis, adapted from the teacher's RedisCacheBackend (§6.2).
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mediapipeline/internal/domain"
)

const jobQueueKey = "mediapipeline:jobs"

// Queue implements ports.JobQueue as a Redis list: RPUSH to enqueue, BLPOP
// to pop with a blocking timeout (§6.2).
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Push(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, jobQueueKey, data).Err()
}

// Pop blocks up to timeout waiting for a job. A zero-value second return
// means the timeout elapsed with nothing queued, which is not an error.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (domain.Job, bool, error) {
	res, err := q.client.BLPop(ctx, timeout, jobQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, err
	}
	// BLPop returns [key, value].
	if len(res) < 2 {
		return domain.Job{}, false, nil
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return domain.Job{}, false, err
	}
	return job, true, nil
}
