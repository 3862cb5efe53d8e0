package config

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Calibration is one camera's raw calibration entry. Both fields keep the
// heterogeneous JSON shape (mapping, list, or nested matrix); the geometry
// package resolves them once the frame resolution is known.
type Calibration struct {
	Intrinsics any `json:"intrinsics"`
	Distortion any `json:"distortion"`
}

// LoadCalibrations reads the camera calibration file. A missing or
// malformed file yields an empty set with a warning: cameras then publish
// without intrinsics, which is the documented degradation path.
func LoadCalibrations(path string) map[string]Calibration {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("camera calibrations unavailable", "path", path, "error", err)
		return map[string]Calibration{}
	}

	var calibrations map[string]Calibration
	if err := json.Unmarshal(data, &calibrations); err != nil {
		slog.Warn("camera calibrations malformed", "path", path, "error", err)
		return map[string]Calibration{}
	}

	return calibrations
}
