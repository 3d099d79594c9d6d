package worker

import (
	"context"

	"comfyworker/internal/config"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/processor"
	"comfyworker/internal/worker/queue"
)

// JobSource yields queued jobs; (nil, nil) means nothing arrived yet.
type JobSource interface {
	Pop(ctx context.Context) (*processor.Job, error)
}

// ResultSink records job state for pollers.
type ResultSink interface {
	Put(ctx context.Context, rec queue.JobRecord) error
}

// JobRunner executes a job and always produces a response.
type JobRunner interface {
	Run(ctx context.Context, job processor.Job) processor.Response
}

type Deps struct {
	Queue   JobSource
	Results ResultSink
	Runner  JobRunner
	Worker  config.WorkerConfig
	Log     *logger.Logger
}
