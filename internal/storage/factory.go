package storage

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"comfyworker/internal/adapters/storage/gdrive"
	"comfyworker/internal/adapters/storage/localfs"
	"comfyworker/internal/adapters/storage/s3bucket"
	"comfyworker/internal/config"
)

// NewProvider builds the configured provider. It returns (nil, nil) when
// external storage is disabled and artifacts are returned inline.
func NewProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil

	case config.ProviderLocalFS:
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("STORAGE_LOCAL_ROOT is required for localfs")
		}
		return localfs.New(cfg.LocalRoot), nil

	case config.ProviderS3:
		client, err := s3bucket.New(ctx, s3bucket.Config{
			EndpointURL:     cfg.BucketEndpointURL,
			Bucket:          cfg.BucketName,
			Region:          cfg.BucketRegion,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PresignExpiry:   cfg.PresignExpiry,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderGDrive:
		return newGDriveProvider(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newGDriveProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	if cfg.GDriveClientID == "" || cfg.GDriveClientSecret == "" || cfg.GDriveRefreshToken == "" {
		return nil, fmt.Errorf("GDRIVE_CLIENT_ID, GDRIVE_CLIENT_SECRET and GDRIVE_REFRESH_TOKEN are required for gdrive")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
