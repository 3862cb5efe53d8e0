package types

import (
	"encoding/json"
	"time"
)

// DatetimeFormat matches the upstream pipeline's millisecond timestamp
// layout; the trailing Z is appended literally after truncation to ms.
const DatetimeFormat = "2006-01-02T15:04:05.000"

// Resolution is the frame size reported by the decoder.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NormalizedBox is a detector bounding box in [0,1] frame coordinates.
type NormalizedBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// DetectionInfo is the nested detection block of a raw inference result.
type DetectionInfo struct {
	Label       string        `json:"label"`
	Confidence  float64       `json:"confidence"`
	BoundingBox NormalizedBox `json:"bounding_box"`
}

// Tensor carries auxiliary model output attached to a detection, such as a
// re-identification embedding.
type Tensor struct {
	Name string    `json:"name,omitempty"`
	Data []float64 `json:"data"`
}

// RawDetection is one upstream inference result. Classification models
// attach their output under a model-specific top-level key, so unknown keys
// are retained in Aux for the policy layer to pick up.
type RawDetection struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`

	Detection DetectionInfo `json:"detection"`
	Tensors   []Tensor      `json:"tensors,omitempty"`

	Aux map[string]json.RawMessage `json:"-"`
}

var rawDetectionKnownKeys = []string{"x", "y", "w", "h", "detection", "tensors"}

// UnmarshalJSON decodes the known fields and stashes every remaining
// top-level key into Aux.
func (d *RawDetection) UnmarshalJSON(data []byte) error {
	type plain RawDetection
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range rawDetectionKnownKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		p.Aux = all
	}

	*d = RawDetection(p)
	return nil
}

// RawMetadata is the consolidated per-frame metadata the pipeline attaches
// across the decode and inference stages. Stage messages are merged into a
// single struct; later messages only overwrite the fields they carry.
type RawMetadata struct {
	PostDecodeTimestamp   string         `json:"postdecode_timestamp"`
	TimestampForNextBlock float64        `json:"timestamp_for_next_block"`
	FPS                   float64        `json:"fps"`
	Resolution            *Resolution    `json:"resolution,omitempty"`
	Objects               []RawDetection `json:"objects,omitempty"`
}

// CaptureStamp is the message the post-decode stage attaches to a frame.
type CaptureStamp struct {
	PostDecodeTimestamp   string  `json:"postdecode_timestamp"`
	TimestampForNextBlock float64 `json:"timestamp_for_next_block"`
	FPS                   float64 `json:"fps"`
}

// FormatTimestamp renders t in the pipeline's UTC millisecond format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(DatetimeFormat) + "Z"
}

// EpochSeconds converts t to fractional epoch seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
