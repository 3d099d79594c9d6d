package storage

import "comfyworker/internal/ports"

// Provider is the storage contract used by the collector.
// It is an alias to ports.StorageProvider to keep call-sites simple.
type Provider = ports.StorageProvider
