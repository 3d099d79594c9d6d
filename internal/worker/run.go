package worker

import (
	"context"
	"time"

	"comfyworker/internal/diagnostics"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/processor"
	"comfyworker/internal/worker/queue"
)

// finalRecordTimeout bounds the terminal status write once the job is done.
const finalRecordTimeout = 5 * time.Second

// Run consumes jobs until ctx ends. With RefreshWorker set it returns nil
// after the first job so the host can restart the process.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		job, err := d.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			sleep(ctx, time.Second)
			continue
		}

		if job == nil {
			continue
		}

		handle(ctx, d, log, *job)

		if d.Worker.RefreshWorker {
			log.Info("refresh worker enabled, stopping after job", "job_id", job.ID)
			return nil
		}
	}
}

func handle(ctx context.Context, d Deps, log *logger.Logger, job processor.Job) {
	jobCtx := logger.ContextWithJobID(ctx, job.ID)
	jobLog := log.WithJobID(job.ID)

	jobLog.Info("processing job")
	startTime := time.Now()

	record(jobCtx, d, jobLog, queue.JobRecord{ID: job.ID, Status: queue.StatusInProgress})

	if d.Worker.NetworkVolumeDebug {
		diagnostics.LogVolume(d.Worker.NetworkVolumePath, jobLog)
	}

	resp := d.Runner.Run(jobCtx, job)
	resp.RefreshWorker = d.Worker.RefreshWorker

	status := queue.StatusCompleted
	if resp.Failed() {
		status = queue.StatusFailed
	}
	// El resultado se guarda aunque el worker se esté apagando
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(jobCtx), finalRecordTimeout)
	defer cancel()
	record(finalCtx, d, jobLog, queue.JobRecord{ID: job.ID, Status: status, Output: &resp})

	jobLog.Info("job finished",
		"status", status,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
}

// record is best effort; a lost status update must not stop the loop.
func record(ctx context.Context, d Deps, log *logger.Logger, rec queue.JobRecord) {
	if d.Results == nil {
		return
	}
	if err := d.Results.Put(ctx, rec); err != nil {
		log.Warn("failed to store job record", "status", rec.Status, "error", err.Error())
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
