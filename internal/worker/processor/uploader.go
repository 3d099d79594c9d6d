package processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"comfyworker/internal/pkg/errors"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/worker/renderer"
)

// Uploader pushes job input images into the engine's input folder.
type Uploader struct {
	client renderer.Client
	log    *logger.Logger
}

func NewUploader(client renderer.Client, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Uploader{client: client, log: log.WithComponent("uploader")}
}

// Upload sends every image in order. A failing image does not stop the
// batch; all failures are reported together as one CodeUpload error.
func (u *Uploader) Upload(ctx context.Context, images []ImageInput) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}

	u.log.Info("uploading input images", "count", len(images))

	uploaded := make([]string, 0, len(images))
	var failures []string

	for _, img := range images {
		if err := u.uploadOne(ctx, img); err != nil {
			msg := fmt.Sprintf("Error uploading %s: %v", img.Name, err)
			u.log.Warn("image upload failed", "name", img.Name, "error", err.Error())
			failures = append(failures, msg)
			continue
		}
		uploaded = append(uploaded, img.Name)
		u.log.Debug("image uploaded", "name", img.Name)
	}

	if len(failures) > 0 {
		return uploaded, errors.New(errors.CodeUpload, "Failed to upload input images").
			WithOp("uploader.upload").
			WithDetails(failures...)
	}
	return uploaded, nil
}

func (u *Uploader) uploadOne(ctx context.Context, img ImageInput) error {
	blob, err := decodeImage(img.Image)
	if err != nil {
		return err
	}
	return u.client.UploadImage(ctx, img.Name, blob)
}

// decodeImage drops everything up to the first comma (data:image/png;base64,)
// and decodes the rest. Unpadded payloads are accepted.
func decodeImage(payload string) ([]byte, error) {
	if _, rest, found := strings.Cut(payload, ","); found {
		payload = rest
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	blob, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return blob, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("invalid base64 payload: %w", err)
}
