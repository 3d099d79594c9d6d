package handlers

import (
	"context"

	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/processor"
	"comfyworker/internal/worker/queue"
)

// JobQueue is the producer side of the worker queue.
type JobQueue interface {
	Push(ctx context.Context, job processor.Job) error
	Len(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// JobStore keeps the records callers poll.
type JobStore interface {
	Put(ctx context.Context, rec queue.JobRecord) error
	Get(ctx context.Context, id string) (*queue.JobRecord, error)
}

type Deps struct {
	Queue   JobQueue
	Results JobStore
	Log     *logger.Logger
}

type Handler struct {
	queue   JobQueue
	results JobStore
	log     *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		queue:   d.Queue,
		results: d.Results,
		log:     log.WithComponent("api"),
	}
}
