package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/worker/processor"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestQueueFIFO(t *testing.T) {
	_, rdb := newRedis(t)
	q := NewRedisQueue(rdb, "comfy:jobs")
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := q.Push(ctx, processor.Job{ID: id, Input: json.RawMessage(`{"workflow":{}}`)}); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}

	for _, want := range []string{"a", "b"} {
		job, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if job == nil || job.ID != want {
			t.Fatalf("Pop() = %+v, want id %s", job, want)
		}
		if string(job.Input) != `{"workflow":{}}` {
			t.Errorf("input = %s", job.Input)
		}
	}
}

func TestQueuePopCorrupt(t *testing.T) {
	_, rdb := newRedis(t)
	q := NewRedisQueue(rdb, "comfy:jobs")
	rdb.LPush(context.Background(), "comfy:jobs", "not json")

	if _, err := q.Pop(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	_, rdb := newRedis(t)
	q := NewRedisQueue(rdb, "comfy:jobs")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	job, err := q.Pop(ctx)
	if job != nil {
		t.Errorf("expected no job, got %+v", job)
	}
	if err == nil && ctx.Err() == nil {
		t.Error("expected Pop to return once the context ended")
	}
}

func TestResultStore(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewResultStore(rdb, "comfy:job:", time.Hour)
	ctx := context.Background()

	rec := JobRecord{
		ID:     "job-1",
		Status: StatusCompleted,
		Output: &processor.Response{Images: []processor.Artifact{{Filename: "out.png", Type: "base64", Data: "aGk="}}},
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted || got.Output == nil || len(got.Output.Images) != 1 {
		t.Errorf("record = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
	if ttl := mr.TTL("comfy:job:job-1"); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, "job-1"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("expected not found after expiry, got %v", err)
	}
}

func TestResultStoreMissing(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewResultStore(rdb, "comfy:job:", time.Hour)

	_, err := store.Get(context.Background(), "nope")
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
