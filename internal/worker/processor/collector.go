package processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"comfyworker/internal/metrics"
	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/ports"
	"comfyworker/internal/worker/renderer"
)

// Collector turns a finished prompt's history into response artifacts.
type Collector struct {
	client  renderer.Client
	storage ports.StorageProvider
	tempDir string
	log     *logger.Logger
}

// NewCollector builds a collector. With a nil storage provider images are
// returned inline as base64.
func NewCollector(client renderer.Client, storage ports.StorageProvider, tempDir string, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Collector{
		client:  client,
		storage: storage,
		tempDir: tempDir,
		log:     log.WithComponent("collector"),
	}
}

// Collect fetches every final image of promptID. Fetch and storage failures
// are soft; the job only fails when they leave it with no image at all.
func (c *Collector) Collect(ctx context.Context, jobID, promptID string) (*Output, error) {
	log := c.log.WithJobID(jobID).WithPromptID(promptID)

	history, err := c.client.History(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, errors.Newf(errors.CodeHistoryMissing, "Prompt %s not found in history", promptID).
			WithOp("collector.history")
	}

	out := &Output{}
	for _, nodeID := range sortedKeys(entry.Outputs) {
		for _, ref := range entry.Outputs[nodeID].Images {
			if ref.Temp() || ref.Filename == "" {
				continue
			}

			data, err := c.client.View(ctx, ref)
			if err != nil || len(data) == 0 {
				log.Warn("artifact fetch failed", "node", nodeID, "filename", ref.Filename, "error", fmt.Sprint(err))
				metrics.ObserveArtifact("failed")
				out.Errors = append(out.Errors, "Failed to fetch "+ref.Filename)
				continue
			}

			artifact, err := c.route(ctx, jobID, ref.Filename, data)
			if err != nil {
				log.Warn("artifact upload failed", "filename", ref.Filename, "error", err.Error())
				metrics.ObserveArtifact("failed")
				out.Errors = append(out.Errors, fmt.Sprintf("Storage upload error: %v", err))
				continue
			}

			metrics.ObserveArtifact(artifact.Type)
			out.Images = append(out.Images, artifact)
		}
	}

	if len(out.Images) == 0 && len(out.Errors) > 0 {
		return nil, errors.New(errors.CodeFetch, "Job failed").
			WithOp("collector.collect").
			WithDetails(out.Errors...)
	}

	log.Info("artifacts collected", "images", len(out.Images), "errors", len(out.Errors))
	return out, nil
}

func (c *Collector) route(ctx context.Context, jobID, filename string, data []byte) (Artifact, error) {
	if c.storage == nil {
		return Artifact{
			Filename: filename,
			Type:     ArtifactBase64,
			Data:     base64.StdEncoding.EncodeToString(data),
		}, nil
	}

	url, err := c.store(ctx, jobID, filename, data)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Filename: filename, Type: ArtifactURL, Data: url}, nil
}

// store stages the bytes in a temp file and hands it to the storage
// provider. The temp file is removed whatever the outcome.
func (c *Collector) store(ctx context.Context, jobID, filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".png"
	}

	f, err := os.CreateTemp(c.tempDir, "comfy-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return "", fmt.Errorf("rewind temp file: %w", err)
	}

	res, err := c.storage.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   jobID + "/" + filename,
		ContentType: mime.TypeByExtension(ext),
		Reader:      f,
		Size:        int64(len(data)),
	})
	if err != nil {
		return "", err
	}

	c.log.Debug("artifact stored", "provider", c.storage.Provider(), "key", res.ObjectKey)
	return res.URL, nil
}
