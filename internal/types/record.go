package types

import "github.com/visiona/sscape-adapter/internal/geometry"

// PixelBox is a bounding box in pixel space, taken verbatim from the
// detector's own pixel fields.
type PixelBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterOfMass is an approximate interior sub-region of a bounding box used
// downstream as a stable reference point. The x/y origin is truncated to
// whole pixels; the extents stay fractional.
type CenterOfMass struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ObjectRecord is one normalized detection in a published frame record.
type ObjectRecord struct {
	ID            int          `json:"id"`
	Category      string       `json:"category"`
	Confidence    float64      `json:"confidence"`
	BoundingBoxPx PixelBox     `json:"bounding_box_px"`
	CenterOfMass  CenterOfMass `json:"center_of_mass"`
	// ReID is the base64-encoded 256-float re-identification embedding,
	// present only under the reid metadata policy.
	ReID string `json:"reid,omitempty"`
}

// FrameRecord is the consolidated per-camera record published every frame.
// One instance lives for the camera's lifetime: id and debug_mac are set at
// construction, objects and the timing fields are overwritten per frame,
// and intrinsics/distortion appear at most once.
type FrameRecord struct {
	ID                  string                     `json:"id"`
	DebugMAC            string                     `json:"debug_mac"`
	Timestamp           string                     `json:"timestamp"`
	DebugTimestampEnd   string                     `json:"debug_timestamp_end"`
	DebugProcessingTime float64                    `json:"debug_processing_time"`
	Rate                float64                    `json:"rate"`
	Objects             map[string][]*ObjectRecord `json:"objects"`
	Intrinsics          *geometry.Params           `json:"intrinsics,omitempty"`
	Distortion          *geometry.Distortion       `json:"distortion,omitempty"`
}

// ImageMessage is the one-shot image publication armed over the control
// channel. Intrinsics take the nested 3x3 form here, not the 4-parameter
// form used in frame records.
type ImageMessage struct {
	Timestamp  string               `json:"timestamp"`
	ID         string               `json:"id"`
	Intrinsics *geometry.Matrix     `json:"intrinsics,omitempty"`
	Distortion *geometry.Distortion `json:"distortion,omitempty"`
	Image      string               `json:"image"`
}
