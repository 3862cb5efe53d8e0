package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adapter.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
instance_id: adapter-1
mqtt:
  broker: broker.scenescape.intel.com:1883
cameras:
  - id: camera1
    policy: detectionPolicy
  - id: camera2
    policy: reidPolicy
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.InstanceID != "adapter-1" {
		t.Errorf("instance_id = %q", cfg.InstanceID)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("got %d cameras, want 2", len(cfg.Cameras))
	}
	if cfg.Cameras[1].Policy != "reidPolicy" {
		t.Errorf("camera2 policy = %q", cfg.Cameras[1].Policy)
	}
}

func TestDefaultsFilledIn(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.Calibrations != DefaultCalibrationsPath {
		t.Errorf("calibrations path = %q", cfg.Paths.Calibrations)
	}
	if cfg.Paths.Thresholds != DefaultThresholdsPath {
		t.Errorf("thresholds path = %q", cfg.Paths.Thresholds)
	}
	if cfg.NTP.ResyncIntervalS != 1000 {
		t.Errorf("ntp resync interval = %d, want 1000", cfg.NTP.ResyncIntervalS)
	}
	if cfg.MQTT.QoS["cmd"] != 1 {
		t.Errorf("cmd qos = %d, want 1", cfg.MQTT.QoS["cmd"])
	}
}

func TestRootCAEnvFallback(t *testing.T) {
	t.Setenv("ROOT_CA", "/tmp/test-ca.pem")
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MQTT.RootCA != "/tmp/test-ca.pem" {
		t.Errorf("root CA = %q, want env value", cfg.MQTT.RootCA)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing instance_id", `
mqtt:
  broker: host:1883
cameras:
  - id: camera1
`},
		{"bad instance_id pattern", `
instance_id: Not_Valid
mqtt:
  broker: host:1883
cameras:
  - id: camera1
`},
		{"missing broker", `
instance_id: adapter-1
cameras:
  - id: camera1
`},
		{"no cameras", `
instance_id: adapter-1
mqtt:
  broker: host:1883
`},
		{"duplicate camera ids", `
instance_id: adapter-1
mqtt:
  broker: host:1883
cameras:
  - id: camera1
  - id: camera1
`},
		{"unknown policy", `
instance_id: adapter-1
mqtt:
  broker: host:1883
cameras:
  - id: camera1
    policy: segmentationPolicy
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPolicyDefaultsToDetection(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
instance_id: adapter-1
mqtt:
  broker: host:1883
cameras:
  - id: camera1
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cameras[0].Policy != "detectionPolicy" {
		t.Errorf("policy = %q, want detectionPolicy default", cfg.Cameras[0].Policy)
	}
}

func TestLoadCalibrations(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "calibrations.json")
		content := `{
			"camera1": {"intrinsics": {"fov": 90}, "distortion": [0.1, 0.2]},
			"camera2": {"intrinsics": [905.0, 905.0, 640.0, 360.0]}
		}`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}

		calibs := LoadCalibrations(path)
		if len(calibs) != 2 {
			t.Fatalf("got %d calibrations, want 2", len(calibs))
		}
		if calibs["camera1"].Intrinsics == nil || calibs["camera1"].Distortion == nil {
			t.Errorf("camera1 entry incomplete: %+v", calibs["camera1"])
		}
		if calibs["camera2"].Distortion != nil {
			t.Errorf("camera2 distortion should be absent, got %v", calibs["camera2"].Distortion)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		calibs := LoadCalibrations(filepath.Join(dir, "nope.json"))
		if len(calibs) != 0 {
			t.Errorf("expected empty set, got %v", calibs)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		calibs := LoadCalibrations(path)
		if len(calibs) != 0 {
			t.Errorf("expected empty set, got %v", calibs)
		}
	})
}
