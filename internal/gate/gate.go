// Package gate filters detections by per-class confidence thresholds.
package gate

import (
	"encoding/json"
	"log/slog"
	"os"
)

// DefaultThreshold is the fallback applied when no threshold source is
// available or the source omits a usable default entry.
const DefaultThreshold = 0.5

// Table is an immutable per-class confidence threshold table. Labels not
// listed fall back to the table's default.
type Table struct {
	thresholds map[string]float64
	def        float64
}

// Default returns a table with only the fallback default threshold.
func Default() *Table {
	return &Table{def: DefaultThreshold}
}

// FromMap builds a table from a decoded threshold mapping. A mapping
// without a "default" entry is rejected in favor of the fallback table,
// matching the loader's degradation path.
func FromMap(raw map[string]float64) *Table {
	def, ok := raw["default"]
	if !ok {
		slog.Warn("threshold table missing default entry, using fallback",
			"default", DefaultThreshold)
		return Default()
	}

	thresholds := make(map[string]float64, len(raw)-1)
	for label, threshold := range raw {
		if label == "default" {
			continue
		}
		thresholds[label] = threshold
	}
	return &Table{thresholds: thresholds, def: def}
}

// Load reads a threshold table from a JSON file. Missing or malformed
// sources degrade to the fallback table; thresholds never block startup.
func Load(path string) *Table {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("confidence thresholds unavailable, using fallback",
			"path", path, "error", err, "default", DefaultThreshold)
		return Default()
	}

	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("confidence thresholds malformed, using fallback",
			"path", path, "error", err, "default", DefaultThreshold)
		return Default()
	}

	return FromMap(raw)
}

// Threshold returns the threshold for label, or the default when absent.
func (t *Table) Threshold(label string) float64 {
	if threshold, ok := t.thresholds[label]; ok {
		return threshold
	}
	return t.def
}

// ShouldKeep reports whether a detection passes its class threshold.
// Rejection is an expected filtering outcome, not an error.
func (t *Table) ShouldKeep(label string, confidence float64) bool {
	return confidence >= t.Threshold(label)
}
