// Package diagnostics reports on the network volume the engine loads models from.
package diagnostics

import (
	"os"
	"sort"

	"comfyworker/internal/pkg/logger"
)

const maxListed = 10

// VolumeReport describes what was found at the volume path.
type VolumeReport struct {
	Path    string
	Mounted bool
	Total   int
	Entries []string
	Err     error
}

// InspectVolume looks at path without modifying it. Failures end up in the
// report rather than being returned.
func InspectVolume(path string) VolumeReport {
	rep := VolumeReport{Path: path}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return rep
	}
	rep.Mounted = true

	entries, err := os.ReadDir(path)
	if err != nil {
		rep.Err = err
		return rep
	}

	rep.Total = len(entries)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) > maxListed {
		names = names[:maxListed]
	}
	rep.Entries = names
	return rep
}

// LogVolume inspects path and logs the outcome.
func LogVolume(path string, log *logger.Logger) VolumeReport {
	log = log.WithComponent("network_volume")
	rep := InspectVolume(path)

	switch {
	case !rep.Mounted:
		log.Info("no volume mounted", "path", path)
	case rep.Err != nil:
		log.Warn("error listing volume contents", "path", path, "error", rep.Err.Error())
	default:
		log.Info("volume mounted", "path", path, "entries", rep.Total, "sample", rep.Entries)
	}
	return rep
}
