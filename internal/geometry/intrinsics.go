// Package geometry resolves heterogeneous camera calibration descriptions
// into the canonical pinhole intrinsics matrix and distortion vector.
package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCalibration is returned when a calibration description cannot
// be resolved into an intrinsics matrix.
var ErrInvalidCalibration = errors.New("invalid calibration input")

// DistortionLen is the fixed length of the distortion coefficient vector.
const DistortionLen = 14

// distortionKeys is the fixed schema for named distortion coefficients, in
// serialization order.
var distortionKeys = [DistortionLen]string{
	"k1", "k2", "p1", "p2", "k3", "k4", "k5", "k6",
	"s1", "s2", "s3", "s4", "taux", "tauy",
}

// Matrix is a 3x3 pinhole projection matrix [[fx,0,cx],[0,fy,cy],[0,0,1]].
// It marshals as a nested array, the form used in image messages.
type Matrix [3][3]float64

func (m Matrix) FX() float64 { return m[0][0] }
func (m Matrix) FY() float64 { return m[1][1] }
func (m Matrix) CX() float64 { return m[0][2] }
func (m Matrix) CY() float64 { return m[1][2] }

// Params is the 4-parameter form of the intrinsics matrix, the shape used
// in published frame records.
type Params struct {
	FX float64 `json:"fx"`
	FY float64 `json:"fy"`
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
}

// Distortion is the fixed-length lens distortion coefficient vector.
type Distortion [DistortionLen]float64

// MarshalJSON serializes the vector as a mapping with the schema keys in
// fixed order. Go's map marshaling would sort the keys, which breaks the
// wire contract, so the object is built by hand.
func (d Distortion) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range distortionKeys {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", key)
		val, err := json.Marshal(d[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the named-key mapping form.
func (d *Distortion) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for i, key := range distortionKeys {
		d[i] = m[key]
	}
	return nil
}

// Intrinsics is a resolved camera calibration.
type Intrinsics struct {
	Matrix     Matrix
	Distortion Distortion
}

// New resolves a calibration description and an optional distortion
// description into canonical form. Accepted calibration shapes, mirroring
// the calibration file format:
//
//   - mapping with fx, fy, cx, cy
//   - mapping with hfov+vfov, or fov
//   - 4-element list (fx, fy, cx, cy)
//   - 1- or 2-element list of field-of-view angles in degrees
//   - pre-built 3x3 nested list
//
// Field-of-view forms require a positive resolution; resolving one without
// it fails with ErrInvalidCalibration.
func New(calibration, distortion any, width, height int) (*Intrinsics, error) {
	m, err := resolveMatrix(calibration, width, height)
	if err != nil {
		return nil, err
	}
	d, err := resolveDistortion(distortion)
	if err != nil {
		return nil, err
	}
	return &Intrinsics{Matrix: m, Distortion: d}, nil
}

// Params returns the 4-parameter form of the matrix.
func (in *Intrinsics) Params() Params {
	return Params{FX: in.Matrix.FX(), FY: in.Matrix.FY(), CX: in.Matrix.CX(), CY: in.Matrix.CY()}
}

func resolveMatrix(calibration any, width, height int) (Matrix, error) {
	switch v := calibration.(type) {
	case Matrix:
		return v, nil

	case map[string]any:
		if fx, fy, cx, cy, ok := paramsFromMap(v); ok {
			return pinhole(fx, fy, cx, cy), nil
		}
		if angles, ok := fovFromMap(v); ok {
			return fovMatrix(angles, width, height)
		}
		return Matrix{}, fmt.Errorf("%w: unrecognized calibration keys", ErrInvalidCalibration)

	case []any:
		if m, ok := nestedMatrix(v); ok {
			return m, nil
		}
		floats, ok := toFloats(v)
		if !ok {
			return Matrix{}, fmt.Errorf("%w: non-numeric calibration list", ErrInvalidCalibration)
		}
		return matrixFromList(floats, width, height)

	case []float64:
		return matrixFromList(v, width, height)

	case [][]float64:
		if len(v) == 3 && len(v[0]) == 3 && len(v[1]) == 3 && len(v[2]) == 3 {
			var m Matrix
			for i := 0; i < 3; i++ {
				copy(m[i][:], v[i])
			}
			return m, nil
		}
		return Matrix{}, fmt.Errorf("%w: matrix must be 3x3", ErrInvalidCalibration)

	default:
		return Matrix{}, fmt.Errorf("%w: unsupported calibration type %T", ErrInvalidCalibration, calibration)
	}
}

func matrixFromList(vals []float64, width, height int) (Matrix, error) {
	switch len(vals) {
	case 4:
		return pinhole(vals[0], vals[1], vals[2], vals[3]), nil
	case 1, 2:
		return fovMatrix(vals, width, height)
	default:
		return Matrix{}, fmt.Errorf("%w: calibration list must have 1, 2 or 4 entries, got %d",
			ErrInvalidCalibration, len(vals))
	}
}

// fovMatrix derives focal lengths from field-of-view angles in degrees. The
// principal point is the frame center; with a single angle the focal length
// is set from the half-diagonal so the angle covers the full diagonal.
func fovMatrix(angles []float64, width, height int) (Matrix, error) {
	if width <= 0 || height <= 0 {
		return Matrix{}, fmt.Errorf("%w: resolution required to derive intrinsics from field of view",
			ErrInvalidCalibration)
	}
	cx := float64(width) / 2
	cy := float64(height) / 2

	var fx, fy float64
	if len(angles) == 1 {
		d := math.Hypot(cx, cy)
		fx = d / math.Tan(radians(angles[0]/2))
		fy = fx
	} else {
		fx = cx / math.Tan(radians(angles[0]/2))
		fy = cy / math.Tan(radians(angles[1]/2))
	}
	return pinhole(fx, fy, cx, cy), nil
}

func resolveDistortion(distortion any) (Distortion, error) {
	var d Distortion
	switch v := distortion.(type) {
	case nil:
		return d, nil

	case []float64:
		return distortionFromList(v)

	case []any:
		floats, ok := toFloats(v)
		if !ok {
			return d, fmt.Errorf("%w: non-numeric distortion list", ErrInvalidCalibration)
		}
		return distortionFromList(floats)

	case map[string]any:
		for i, key := range distortionKeys {
			if raw, ok := v[key]; ok {
				if f, ok := toFloat(raw); ok {
					d[i] = f
				}
			}
		}
		return d, nil

	default:
		// Unrecognized input degrades to the zero vector, matching the
		// behavior for absent distortion.
		return d, nil
	}
}

func distortionFromList(vals []float64) (Distortion, error) {
	var d Distortion
	if len(vals) > DistortionLen {
		return d, fmt.Errorf("%w: distortion list longer than %d entries", ErrInvalidCalibration, DistortionLen)
	}
	copy(d[:], vals)
	return d, nil
}

func pinhole(fx, fy, cx, cy float64) Matrix {
	return Matrix{
		{fx, 0, cx},
		{0, fy, cy},
		{0, 0, 1},
	}
}

func paramsFromMap(m map[string]any) (fx, fy, cx, cy float64, ok bool) {
	vals := make([]float64, 0, 4)
	for _, key := range [...]string{"fx", "fy", "cx", "cy"} {
		raw, present := m[key]
		if !present {
			return 0, 0, 0, 0, false
		}
		f, good := toFloat(raw)
		if !good {
			return 0, 0, 0, 0, false
		}
		vals = append(vals, f)
	}
	return vals[0], vals[1], vals[2], vals[3], true
}

func fovFromMap(m map[string]any) ([]float64, bool) {
	if h, hok := toFloat(m["hfov"]); hok {
		if v, vok := toFloat(m["vfov"]); vok {
			return []float64{h, v}, true
		}
	}
	if f, ok := toFloat(m["fov"]); ok {
		return []float64{f}, true
	}
	return nil, false
}

func toFloats(vals []any) ([]float64, bool) {
	out := make([]float64, len(vals))
	for i, raw := range vals {
		f, ok := toFloat(raw)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func nestedMatrix(vals []any) (Matrix, bool) {
	if len(vals) != 3 {
		return Matrix{}, false
	}
	var m Matrix
	for i, raw := range vals {
		row, ok := raw.([]any)
		if !ok || len(row) != 3 {
			return Matrix{}, false
		}
		floats, ok := toFloats(row)
		if !ok {
			return Matrix{}, false
		}
		copy(m[i][:], floats)
	}
	return m, true
}
