package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"comfyworker/internal/httpkit"
	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/processor"
	"comfyworker/internal/worker/queue"
)

type CreateJobRequest struct {
	Input json.RawMessage `json:"input"`
}

type CreateJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PostJob valida el input, registra el job como IN_QUEUE y lo encola.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req CreateJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return errors.WrapWithCode(err, errors.CodeBadRequest, "jobs.post", "invalid json body")
	}
	if len(bytes.TrimSpace(req.Input)) == 0 {
		return errors.New(errors.CodeBadRequest, "'input' is required").WithField("field", "input")
	}

	// Same checks the worker runs, so malformed jobs never reach the queue.
	if _, err := processor.ValidateInput(req.Input); err != nil {
		return err
	}

	job := processor.Job{ID: uuid.NewString(), Input: req.Input}
	ctx = logger.ContextWithJobID(ctx, job.ID)

	if err := h.results.Put(ctx, queue.JobRecord{ID: job.ID, Status: queue.StatusInQueue}); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "jobs.post", "failed to record job")
	}
	if err := h.queue.Push(ctx, job); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "jobs.post", "queue push failed")
	}

	h.log.FromContext(ctx).Info("job queued")

	httpkit.WriteJSON(w, http.StatusAccepted, CreateJobResponse{ID: job.ID, Status: queue.StatusInQueue})
	return nil
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) error {
	id := strings.TrimSpace(chi.URLParam(r, "jobId"))
	if id == "" {
		return errors.New(errors.CodeBadRequest, "job id is required")
	}

	rec, err := h.results.Get(r.Context(), id)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, rec)
	return nil
}
