package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"mediapipeline/internal/domain"
)

const (
	liveStatusPrefix = "mediapipeline:live:"
	heartbeatKey     = "worker_health"
)

// LiveStatusStore implements ports.LiveStatusStore: a TTL-less key-value
// view published by the Worker (§3.3, §6.2). The Monitor does not publish to
// it, and no route of the Serving Surface reads it.
type LiveStatusStore struct {
	client *redis.Client
}

func NewLiveStatusStore(client *redis.Client) *LiveStatusStore {
	return &LiveStatusStore{client: client}
}

func (s *LiveStatusStore) Publish(ctx context.Context, id domain.MediaID, status domain.LiveStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, liveStatusPrefix+string(id), data, 0).Err()
}

func (s *LiveStatusStore) Get(ctx context.Context, id domain.MediaID) (domain.LiveStatus, bool, error) {
	data, err := s.client.Get(ctx, liveStatusPrefix+string(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.LiveStatus{}, false, nil
		}
		return domain.LiveStatus{}, false, err
	}
	var status domain.LiveStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.LiveStatus{}, false, err
	}
	return status, true, nil
}

// PublishHeartbeat writes the Worker's liveness record to the well-known
// "worker_health" key; the Worker calls it once per heartbeat interval
// (30 seconds by default, §4.3.4).
func (s *LiveStatusStore) PublishHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, heartbeatKey, data, 0).Err()
}
