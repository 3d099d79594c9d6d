// Package config builds the worker configuration once at process start.
// Components receive the relevant section explicitly; nothing below cmd/
// reads the environment on its own.
package config

import (
	"fmt"
	"net/url"
	"time"

	"comfyworker/internal/pkg/logger"
)

const (
	defaultComfyHost         = "127.0.0.1:8188"
	defaultProbeAttempts     = 500
	defaultProbeIntervalMS   = 50
	defaultReconnectAttempts = 5
	defaultReconnectDelayS   = 3
	defaultQueueName         = "comfy:jobs"
	defaultResultPrefix      = "comfy:job:"
	defaultResultTTL         = 24 * time.Hour
	defaultPresignExpiry     = 7 * 24 * time.Hour
	defaultVolumePath        = "/runpod-volume"
)

// Storage provider names.
const (
	ProviderS3      = "s3"
	ProviderGDrive  = "gdrive"
	ProviderLocalFS = "localfs"
)

type Config struct {
	Engine  EngineConfig
	Storage StorageConfig
	Queue   QueueConfig
	Worker  WorkerConfig
	API     APIConfig
	Log     logger.Config
}

// EngineConfig describes how to reach the local ComfyUI instance.
type EngineConfig struct {
	Host              string
	ProbeAttempts     int
	ProbeInterval     time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	WebsocketTrace    bool
	// APIKey is the process-wide Comfy.org credential; a job-level key wins.
	APIKey string
}

// BaseURL returns the engine HTTP root, e.g. http://127.0.0.1:8188.
func (c EngineConfig) BaseURL() string {
	return "http://" + c.Host
}

// WebsocketURL returns the event-stream endpoint scoped to clientID.
func (c EngineConfig) WebsocketURL(clientID string) string {
	return fmt.Sprintf("ws://%s/ws?clientId=%s", c.Host, url.QueryEscape(clientID))
}

type StorageConfig struct {
	// Provider is empty when no external storage is configured.
	Provider          string
	LocalRoot         string
	BucketEndpointURL string
	BucketName        string
	BucketRegion      string
	AccessKeyID       string
	SecretAccessKey   string
	PresignExpiry     time.Duration

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string
}

// Enabled reports whether artifacts go to external storage instead of inline base64.
func (c StorageConfig) Enabled() bool {
	return c.Provider != ""
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
	ResultPrefix  string
	ResultTTL     time.Duration
}

type WorkerConfig struct {
	RefreshWorker      bool
	NetworkVolumeDebug bool
	NetworkVolumePath  string
	MetricsAddr        string
}

type APIConfig struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		Engine: EngineConfig{
			Host:              Env("COMFY_HOST", defaultComfyHost),
			ProbeAttempts:     IntEnv("COMFY_API_AVAILABLE_MAX_RETRIES", defaultProbeAttempts),
			ProbeInterval:     time.Duration(IntEnv("COMFY_API_AVAILABLE_INTERVAL_MS", defaultProbeIntervalMS)) * time.Millisecond,
			ReconnectAttempts: IntEnv("WEBSOCKET_RECONNECT_ATTEMPTS", defaultReconnectAttempts),
			ReconnectDelay:    time.Duration(IntEnv("WEBSOCKET_RECONNECT_DELAY_S", defaultReconnectDelayS)) * time.Second,
			WebsocketTrace:    BoolEnv("WEBSOCKET_TRACE", false),
			APIKey:            Env("COMFY_ORG_API_KEY", ""),
		},
		Storage: StorageConfig{
			Provider:           Env("STORAGE_PROVIDER", ""),
			LocalRoot:          Env("STORAGE_LOCAL_ROOT", "/data/outputs"),
			BucketEndpointURL:  Env("BUCKET_ENDPOINT_URL", ""),
			BucketName:         Env("BUCKET_NAME", ""),
			BucketRegion:       Env("BUCKET_REGION", "us-east-1"),
			AccessKeyID:        Env("BUCKET_ACCESS_KEY_ID", ""),
			SecretAccessKey:    Env("BUCKET_SECRET_ACCESS_KEY", ""),
			PresignExpiry:      DurationEnv("BUCKET_PRESIGN_EXPIRY", defaultPresignExpiry),
			GDriveClientID:     Env("GDRIVE_CLIENT_ID", ""),
			GDriveClientSecret: Env("GDRIVE_CLIENT_SECRET", ""),
			GDriveRefreshToken: Env("GDRIVE_REFRESH_TOKEN", ""),
			GDriveFolderID:     Env("GDRIVE_FOLDER_ID", ""),
		},
		Queue: QueueConfig{
			RedisAddr:     Env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: Env("REDIS_PASSWORD", ""),
			RedisDB:       IntEnv("REDIS_DB", 0),
			Name:          Env("JOB_QUEUE_NAME", defaultQueueName),
			ResultPrefix:  Env("JOB_RESULT_PREFIX", defaultResultPrefix),
			ResultTTL:     DurationEnv("JOB_RESULT_TTL", defaultResultTTL),
		},
		Worker: WorkerConfig{
			RefreshWorker:      BoolEnv("REFRESH_WORKER", false),
			NetworkVolumeDebug: BoolEnv("NETWORK_VOLUME_DEBUG", false),
			NetworkVolumePath:  Env("NETWORK_VOLUME_PATH", defaultVolumePath),
			MetricsAddr:        Env("METRICS_ADDR", ""),
		},
		API: APIConfig{
			Addr:            Env("HTTP_ADDR", "0.0.0.0:8080"),
			CORSOrigins:     CSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			ShutdownTimeout: DurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Log: logger.DefaultConfig(),
	}

	// La presencia del endpoint del bucket activa S3 si no se eligió otro provider.
	if cfg.Storage.Provider == "" && cfg.Storage.BucketEndpointURL != "" {
		cfg.Storage.Provider = ProviderS3
	}

	return cfg
}
