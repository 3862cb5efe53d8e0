// Package policy turns raw inference results into normalized object
// records. The three policy variants mirror the three result shapes the
// upstream topology can produce: plain detection, detection with a
// re-identification embedding, and detection with a classification layer.
package policy

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/visiona/sscape-adapter/internal/types"
)

// ErrDataShape marks detections whose auxiliary payload does not match the
// configured policy. The affected object is skipped; the frame continues.
var ErrDataShape = errors.New("malformed detection payload")

// Kind selects one of the closed set of metadata policies.
type Kind int

const (
	// Detection emits category, confidence and box geometry.
	Detection Kind = iota
	// Reid adds the base64-packed re-identification embedding.
	Reid
	// Classification overwrites the category with a classifier label.
	Classification
)

func (k Kind) String() string {
	switch k {
	case Detection:
		return "detection"
	case Reid:
		return "reid"
	case Classification:
		return "classification"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind resolves a configured policy name. An unknown name is a fatal
// configuration error.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "detectionPolicy":
		return Detection, nil
	case "reidPolicy":
		return Reid, nil
	case "classificationPolicy":
		return Classification, nil
	default:
		return 0, fmt.Errorf("unknown metadata policy %q", name)
	}
}

// DefaultClassificationField is the raw-detection key the classification
// policy reads its label from when the deployment does not configure one.
// The key names one specific classifier's output layer, so real
// deployments are expected to set it per model.
const DefaultClassificationField = "classification_layer_name:efficientnet-b0/model/head/dense/BiasAdd:0"

// reidVectorLen is the embedding length the reid topology emits.
const reidVectorLen = 256

// reidTensorIndex is the position of the embedding among a detection's
// auxiliary tensors; index 0 is the detection tensor itself.
const reidTensorIndex = 1

// Policy converts one raw detection into an object record. The variant is
// fixed at construction.
type Policy struct {
	kind       Kind
	labelField string
}

// New resolves a configured policy name, failing fast on unknown names.
// labelField overrides the classification output key; empty selects
// DefaultClassificationField.
func New(name, labelField string) (*Policy, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	if labelField == "" {
		labelField = DefaultClassificationField
	}
	return &Policy{kind: kind, labelField: labelField}, nil
}

// Kind returns the policy variant.
func (p *Policy) Kind() Kind {
	return p.kind
}

// Build produces the object record for one raw detection. The detection
// step is shared by every variant; reid and classification layer their
// extras on top and fail with ErrDataShape when the expected auxiliary
// payload is missing or malformed.
func (p *Policy) Build(det *types.RawDetection, frameWidth, frameHeight int) (*types.ObjectRecord, error) {
	rec := &types.ObjectRecord{
		Category:   det.Detection.Label,
		Confidence: det.Detection.Confidence,
	}
	applyBoxGeometry(rec, det, frameWidth, frameHeight)

	switch p.kind {
	case Reid:
		if err := attachReid(rec, det); err != nil {
			return nil, err
		}
	case Classification:
		if err := p.overrideCategory(rec, det); err != nil {
			return nil, err
		}
	}

	return rec, nil
}

// applyBoxGeometry fills in the pixel box and center-of-mass sub-region.
// The normalized box is converted to pixel extents by truncation; the
// center of mass covers the central third-width by quarter-height.
func applyBoxGeometry(rec *types.ObjectRecord, det *types.RawDetection, frameWidth, frameHeight int) {
	nb := det.Detection.BoundingBox
	xmin := int(nb.XMin * float64(frameWidth))
	xmax := int(nb.XMax * float64(frameWidth))
	ymin := int(nb.YMin * float64(frameHeight))
	ymax := int(nb.YMax * float64(frameHeight))

	comw := float64(xmax-xmin) / 3
	comh := float64(ymax-ymin) / 4

	rec.CenterOfMass = types.CenterOfMass{
		X:      int(float64(xmin) + comw),
		Y:      int(float64(ymin) + comh),
		Width:  comw,
		Height: comh,
	}
	rec.BoundingBoxPx = types.PixelBox{X: det.X, Y: det.Y, Width: det.W, Height: det.H}
}

// attachReid packs the embedding tensor into a fixed 256-float binary
// buffer and base64-encodes it, the wire form downstream re-identification
// expects.
func attachReid(rec *types.ObjectRecord, det *types.RawDetection) error {
	if len(det.Tensors) <= reidTensorIndex {
		return fmt.Errorf("%w: reid tensor missing, have %d tensors", ErrDataShape, len(det.Tensors))
	}
	data := det.Tensors[reidTensorIndex].Data
	if len(data) != reidVectorLen {
		return fmt.Errorf("%w: reid tensor has %d values, want %d", ErrDataShape, len(data), reidVectorLen)
	}

	buf := make([]byte, reidVectorLen*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	rec.ReID = base64.StdEncoding.EncodeToString(buf)
	return nil
}

// overrideCategory replaces the detector label with the classifier label
// found under the configured output field.
func (p *Policy) overrideCategory(rec *types.ObjectRecord, det *types.RawDetection) error {
	raw, ok := det.Aux[p.labelField]
	if !ok {
		return fmt.Errorf("%w: classification field %q missing", ErrDataShape, p.labelField)
	}
	var out struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: classification field %q: %v", ErrDataShape, p.labelField, err)
	}
	rec.Category = out.Label
	return nil
}
