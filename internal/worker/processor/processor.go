package processor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"comfyworker/internal/config"
	"comfyworker/internal/metrics"
	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/ports"
	"comfyworker/internal/worker/renderer"
)

type Deps struct {
	Engine  renderer.Client
	Dialer  renderer.StreamDialer
	Storage ports.StorageProvider
	Config  config.EngineConfig
	TempDir string
	Log     *logger.Logger
}

type Processor struct {
	engine      renderer.Client
	dialer      renderer.StreamDialer
	cfg         config.EngineConfig
	readTimeout time.Duration
	log         *logger.Logger

	// Componentes internos
	prober    *Prober
	uploader  *Uploader
	submitter *Submitter
	collector *Collector
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	return &Processor{
		engine:      d.Engine,
		dialer:      d.Dialer,
		cfg:         d.Config,
		readTimeout: defaultReadTimeout,
		log:         log.WithComponent("processor"),
		prober:      NewProber(d.Engine, d.Config.ProbeAttempts, d.Config.ProbeInterval, log),
		uploader:    NewUploader(d.Engine, log),
		submitter:   NewSubmitter(d.Engine, d.Config.APIKey, log),
		collector:   NewCollector(d.Engine, d.Storage, d.TempDir, log),
	}
}

// ProcessJob orquesta el flujo completo del job
func (p *Processor) ProcessJob(ctx context.Context, job Job) (*Output, error) {
	log := p.log.FromContext(ctx).WithJobID(job.ID)

	// 1. Validar input
	in, err := ValidateInput(job.Input)
	if err != nil {
		return nil, err
	}

	// 2. Esperar al engine
	if !p.prober.WaitReady(ctx) {
		return nil, errors.New(errors.CodeEngineUnreachable, "ComfyUI server not reachable").WithOp("processor.probe")
	}

	// 3. Subir imágenes de entrada
	if _, err := p.uploader.Upload(ctx, in.Images); err != nil {
		return nil, err
	}

	// 4. Abrir el stream antes de encolar, así no se pierde ningún evento
	clientID := uuid.NewString()
	mon := NewMonitor(p.dialer, p.engine, clientID, p.cfg, log)
	mon.readTimeout = p.readTimeout
	if err := mon.Connect(ctx); err != nil {
		return nil, err
	}
	defer mon.Close()

	// 5. Encolar
	queued, err := p.submitter.Submit(ctx, in.Workflow, clientID, in.APIKey)
	if err != nil {
		return nil, err
	}
	log = log.WithPromptID(queued.PromptID)

	// 6. Esperar el estado terminal
	result, err := mon.Wait(ctx, queued.PromptID)
	if err != nil {
		return nil, err
	}
	if result.State == StateFailed {
		return nil, errors.New(errors.CodeExecution, "Job failed").
			WithOp("processor.execute").
			WithDetails(result.Errors...)
	}

	// 7. Recolectar artefactos
	log.Debug("collecting artifacts")
	return p.collector.Collect(ctx, job.ID, queued.PromptID)
}

// Run processes a job and always returns a response; errors and panics
// become failure responses so the worker keeps serving.
func (p *Processor) Run(ctx context.Context, job Job) (resp Response) {
	start := time.Now()
	log := p.log.FromContext(ctx).WithJobID(job.ID)
	code := ""

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing job", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp = Response{Error: fmt.Sprintf("Unexpected error: %v", r)}
			code = "PANIC"
		}

		status := "completed"
		if resp.Failed() {
			status = "failed"
		}
		metrics.ObserveJob(status, code, time.Since(start))
	}()

	out, err := p.ProcessJob(ctx, job)
	if err != nil {
		p.logFailure(log, err)
		code = string(errors.GetCode(err))
	} else {
		log.Info("job completed", "images", len(out.Images), "soft_errors", len(out.Errors), "duration", time.Since(start).String())
	}
	return NewResponse(out, err)
}

func (p *Processor) logFailure(log *logger.Logger, err error) {
	var e *errors.Error
	if errors.As(err, &e) {
		log.Error("job failed",
			"code", string(e.Code),
			"op", e.Op,
			"message", e.Message,
			"details", e.Details,
		)
		return
	}
	log.Error("job failed", "error", err.Error())
}
