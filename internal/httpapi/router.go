package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"comfyworker/internal/httpapi/handlers"
	"comfyworker/internal/httpkit"
	"comfyworker/internal/metrics"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/pkg/middleware"
)

type Deps struct {
	Queue       handlers.JobQueue
	Results     handlers.JobStore
	Log         *logger.Logger
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(metricsMiddleware)
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.CORSOrigins,
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(handlers.Deps{
		Queue:   d.Queue,
		Results: d.Results,
		Log:     log,
	})

	// ---- HEALTH / METRICS ----
	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// ---- JOBS ----
	r.Post("/jobs", middleware.WrapHandler(log, h.PostJob))
	r.Get("/jobs/{jobId}", middleware.WrapHandler(log, h.GetJob))

	return r
}
