package handlers

import (
	"context"
	"net/http"
	"time"

	"comfyworker/internal/httpkit"
)

// Health reports liveness; ?deep=true also checks Redis and the queue depth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "comfy-worker-api",
	}

	if r.URL.Query().Get("deep") == "true" {
		redis := h.checkRedis(ctx)
		health["checks"] = map[string]any{"redis": redis}

		if redis["status"] != "ok" {
			health["status"] = "degraded"
			h.log.FromContext(ctx).Warn("health check degraded", "redis", redis["error"])
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{
		"status": "ok",
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.queue.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	} else if depth, err := h.queue.Len(checkCtx); err == nil {
		result["queue_depth"] = depth
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
