package geometry

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestFourParamMapRoundTrip(t *testing.T) {
	calib := map[string]any{
		"fx": 1000.5, "fy": 998.25, "cx": 320.125, "cy": 240.75,
	}

	in, err := New(calib, nil, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := in.Params()
	if p.FX != 1000.5 || p.FY != 998.25 || p.CX != 320.125 || p.CY != 240.75 {
		t.Errorf("params do not round-trip: %+v", p)
	}
	if in.Matrix[0][1] != 0 || in.Matrix[2][2] != 1 {
		t.Errorf("matrix is not canonical pinhole form: %v", in.Matrix)
	}
}

func TestFourParamListRoundTrip(t *testing.T) {
	in, err := New([]any{800.0, 801.0, 640.0, 360.0}, nil, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := in.Params()
	if p.FX != 800 || p.FY != 801 || p.CX != 640 || p.CY != 360 {
		t.Errorf("params do not round-trip: %+v", p)
	}
}

func TestSingleFOVSquareResolution(t *testing.T) {
	const w, h = 1000, 1000
	const angle = 90.0

	in, err := New([]any{angle}, nil, w, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := in.Params()
	if p.FX != p.FY {
		t.Errorf("expected isotropic focal lengths, got fx=%v fy=%v", p.FX, p.FY)
	}

	d := math.Hypot(w/2.0, h/2.0)
	want := d / math.Tan(angle/2*math.Pi/180)
	if math.Abs(p.FX-want) > 1e-9 {
		t.Errorf("fx = %v, want %v", p.FX, want)
	}
	if p.CX != w/2.0 || p.CY != h/2.0 {
		t.Errorf("principal point = (%v, %v), want frame center", p.CX, p.CY)
	}
}

func TestTwoAngleFOVMap(t *testing.T) {
	const w, h = 1920, 1080

	in, err := New(map[string]any{"hfov": 90.0, "vfov": 60.0}, nil, w, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := in.Params()
	wantFX := (w / 2.0) / math.Tan(45*math.Pi/180)
	wantFY := (h / 2.0) / math.Tan(30*math.Pi/180)
	if math.Abs(p.FX-wantFX) > 1e-9 {
		t.Errorf("fx = %v, want %v", p.FX, wantFX)
	}
	if math.Abs(p.FY-wantFY) > 1e-9 {
		t.Errorf("fy = %v, want %v", p.FY, wantFY)
	}
}

func TestFOVWithoutResolutionFails(t *testing.T) {
	cases := []struct {
		name  string
		calib any
	}{
		{"single angle list", []any{70.0}},
		{"two angle list", []any{70.0, 43.0}},
		{"fov map", map[string]any{"fov": 70.0}},
		{"hfov vfov map", map[string]any{"hfov": 70.0, "vfov": 43.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.calib, nil, 0, 0); !errors.Is(err, ErrInvalidCalibration) {
				t.Errorf("expected ErrInvalidCalibration, got %v", err)
			}
		})
	}
}

func TestPrebuiltMatrixPassthrough(t *testing.T) {
	calib := []any{
		[]any{500.0, 0.0, 320.0},
		[]any{0.0, 501.0, 240.0},
		[]any{0.0, 0.0, 1.0},
	}

	in, err := New(calib, nil, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p := in.Params()
	if p.FX != 500 || p.FY != 501 || p.CX != 320 || p.CY != 240 {
		t.Errorf("unexpected params from prebuilt matrix: %+v", p)
	}
}

func TestInvalidCalibrationShapes(t *testing.T) {
	cases := []struct {
		name  string
		calib any
	}{
		{"three element list", []any{1.0, 2.0, 3.0}},
		{"empty map", map[string]any{}},
		{"string", "not a calibration"},
		{"partial params", map[string]any{"fx": 1.0, "fy": 2.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.calib, nil, 640, 480); !errors.Is(err, ErrInvalidCalibration) {
				t.Errorf("expected ErrInvalidCalibration, got %v", err)
			}
		})
	}
}

func TestDistortionAlwaysFourteenEntries(t *testing.T) {
	cases := []struct {
		name       string
		distortion any
		check      func(t *testing.T, d Distortion)
	}{
		{"absent", nil, func(t *testing.T, d Distortion) {
			if d != (Distortion{}) {
				t.Errorf("expected zero vector, got %v", d)
			}
		}},
		{"short list padded", []any{0.1, 0.2, 0.3}, func(t *testing.T, d Distortion) {
			if d[0] != 0.1 || d[1] != 0.2 || d[2] != 0.3 {
				t.Errorf("leading coefficients wrong: %v", d)
			}
			for i := 3; i < DistortionLen; i++ {
				if d[i] != 0 {
					t.Errorf("entry %d not zero-padded: %v", i, d[i])
				}
			}
		}},
		{"full list", []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14.0}, func(t *testing.T, d Distortion) {
			if d[0] != 1 || d[13] != 14 {
				t.Errorf("full list not preserved: %v", d)
			}
		}},
		{"map subset", map[string]any{"k1": 0.5, "taux": -0.25}, func(t *testing.T, d Distortion) {
			if d[0] != 0.5 {
				t.Errorf("k1 = %v, want 0.5", d[0])
			}
			if d[12] != -0.25 {
				t.Errorf("taux = %v, want -0.25", d[12])
			}
		}},
		{"unrecognized input", "garbage", func(t *testing.T, d Distortion) {
			if d != (Distortion{}) {
				t.Errorf("expected zero vector, got %v", d)
			}
		}},
	}

	calib := []any{600.0, 600.0, 320.0, 240.0}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := New(calib, tc.distortion, 0, 0)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			tc.check(t, in.Distortion)
		})
	}
}

func TestOverlongDistortionListFails(t *testing.T) {
	long := make([]any, DistortionLen+1)
	for i := range long {
		long[i] = 0.1
	}
	if _, err := New([]any{600.0, 600.0, 320.0, 240.0}, long, 0, 0); !errors.Is(err, ErrInvalidCalibration) {
		t.Errorf("expected ErrInvalidCalibration, got %v", err)
	}
}

func TestDistortionSerializesInFixedKeyOrder(t *testing.T) {
	var d Distortion
	for i := range d {
		d[i] = float64(i)
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got := string(data)
	last := -1
	for _, key := range distortionKeys {
		idx := strings.Index(got, `"`+key+`"`)
		if idx < 0 {
			t.Fatalf("key %q missing from %s", key, got)
		}
		if idx < last {
			t.Fatalf("key %q out of order in %s", key, got)
		}
		last = idx
	}

	var back Distortion
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != d {
		t.Errorf("distortion does not round-trip: got %v, want %v", back, d)
	}
}

func TestMatrixMarshalsAsNestedArray(t *testing.T) {
	in, err := New([]any{600.0, 600.0, 320.0, 240.0}, nil, 0, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data, err := json.Marshal(in.Matrix)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[[600,0,320],[0,600,240],[0,0,1]]`
	if string(data) != want {
		t.Errorf("matrix JSON = %s, want %s", data, want)
	}
}
