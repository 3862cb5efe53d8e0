package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRawDetectionUnmarshalKeepsAuxKeys(t *testing.T) {
	raw := `{
		"x": 10, "y": 20, "w": 30, "h": 40,
		"detection": {
			"label": "person",
			"confidence": 0.75,
			"bounding_box": {"x_min": 0.1, "y_min": 0.2, "x_max": 0.3, "y_max": 0.4}
		},
		"tensors": [{"data": [1, 2, 3]}],
		"classification_layer_name:some/model:0": {"label": "worker"}
	}`

	var det RawDetection
	if err := json.Unmarshal([]byte(raw), &det); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if det.X != 10 || det.W != 30 {
		t.Errorf("pixel fields wrong: %+v", det)
	}
	if det.Detection.Label != "person" || det.Detection.Confidence != 0.75 {
		t.Errorf("detection block wrong: %+v", det.Detection)
	}
	if det.Detection.BoundingBox.YMax != 0.4 {
		t.Errorf("normalized box wrong: %+v", det.Detection.BoundingBox)
	}
	if len(det.Tensors) != 1 || len(det.Tensors[0].Data) != 3 {
		t.Errorf("tensors wrong: %+v", det.Tensors)
	}

	aux, ok := det.Aux["classification_layer_name:some/model:0"]
	if !ok {
		t.Fatalf("aux key missing, have %v", det.Aux)
	}
	var out struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(aux, &out); err != nil {
		t.Fatalf("aux value unusable: %v", err)
	}
	if out.Label != "worker" {
		t.Errorf("aux label = %q, want worker", out.Label)
	}

	// Known keys must not leak into Aux.
	for _, key := range rawDetectionKnownKeys {
		if _, present := det.Aux[key]; present {
			t.Errorf("known key %q leaked into Aux", key)
		}
	}
}

func TestRawMetadataMergesAcrossMessages(t *testing.T) {
	md := &RawMetadata{}

	stamp := `{"postdecode_timestamp": "2025-06-01T12:00:00.000Z", "timestamp_for_next_block": 1748779200.0, "fps": 4.5}`
	if err := json.Unmarshal([]byte(stamp), md); err != nil {
		t.Fatalf("Unmarshal stamp failed: %v", err)
	}

	inference := `{"resolution": {"width": 640, "height": 480}, "objects": []}`
	if err := json.Unmarshal([]byte(inference), md); err != nil {
		t.Fatalf("Unmarshal inference failed: %v", err)
	}

	if md.PostDecodeTimestamp != "2025-06-01T12:00:00.000Z" {
		t.Errorf("stamp fields lost on merge: %+v", md)
	}
	if md.FPS != 4.5 {
		t.Errorf("fps = %v, want 4.5", md.FPS)
	}
	if md.Resolution == nil || md.Resolution.Width != 640 {
		t.Errorf("resolution not merged: %+v", md.Resolution)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	if got := FormatTimestamp(ts); got != "2024-01-02T03:04:05.678Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}

	// Sub-millisecond precision truncates; non-UTC inputs convert.
	loc := time.FixedZone("plus2", 2*3600)
	ts = time.Date(2024, 1, 2, 5, 4, 5, 678_901_234, loc)
	if got := FormatTimestamp(ts); got != "2024-01-02T03:04:05.678Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}

func TestEpochSeconds(t *testing.T) {
	ts := time.Unix(1748779200, 250_000_000)
	if got := EpochSeconds(ts); got != 1748779200.25 {
		t.Errorf("EpochSeconds = %v", got)
	}
}

func TestMACAddressEnvOverride(t *testing.T) {
	t.Setenv("MACADDR", "aa:bb:cc:dd:ee:ff")
	if got := MACAddress(); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MACAddress = %q, want env override", got)
	}
}

func TestObjectRecordJSONShape(t *testing.T) {
	rec := &ObjectRecord{
		ID:            1,
		Category:      "person",
		Confidence:    0.9,
		BoundingBoxPx: PixelBox{X: 10, Y: 20, Width: 100, Height: 200},
		CenterOfMass:  CenterOfMass{X: 266, Y: 180, Width: 320.0 / 3, Height: 60},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if _, present := decoded["reid"]; present {
		t.Error("empty reid must be omitted")
	}
	com := decoded["center_of_mass"].(map[string]any)
	if com["x"].(float64) != 266 || com["y"].(float64) != 180 {
		t.Errorf("center_of_mass origin wrong: %v", com)
	}
}
