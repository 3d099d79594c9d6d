package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/worker/processor"
)

// Job statuses as seen by API callers.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// JobRecord is the polled state of a job.
type JobRecord struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Output    *processor.Response `json:"output,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// ResultStore keeps job records in Redis under prefix+id with a TTL.
type ResultStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewResultStore(rdb *redis.Client, prefix string, ttl time.Duration) *ResultStore {
	return &ResultStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *ResultStore) key(id string) string {
	return s.prefix + id
}

// Put overwrites the record and refreshes its TTL.
func (s *ResultStore) Put(ctx context.Context, rec JobRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.rdb.Set(ctx, s.key(rec.ID), payload, s.ttl).Err()
}

// Get returns the record or a CodeNotFound error once it expired.
func (s *ResultStore) Get(ctx context.Context, id string) (*JobRecord, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound("job", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "results.get", "failed to read job record")
	}

	var rec JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(err, "results.get", "corrupt job record")
	}
	return &rec, nil
}
