package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/visiona/sscape-adapter/internal/policy"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Default locations matching the pipeline-server container layout.
const (
	DefaultRootCA           = "/run/secrets/certs/scenescape-ca.pem"
	DefaultCalibrationsPath = "/home/pipeline-server/calibrations.json"
	DefaultThresholdsPath   = "/home/pipeline-server/models/confidence_thresholds.json"
)

// Validate checks the configuration and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if cfg.MQTT.RootCA == "" {
		if env := os.Getenv("ROOT_CA"); env != "" {
			cfg.MQTT.RootCA = env
		} else {
			cfg.MQTT.RootCA = DefaultRootCA
		}
	}
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"data":  0,
			"image": 0,
			"cmd":   1,
		}
	}

	if len(cfg.Cameras) == 0 {
		return fmt.Errorf("at least one camera is required")
	}
	seen := make(map[string]bool, len(cfg.Cameras))
	for i := range cfg.Cameras {
		cam := &cfg.Cameras[i]
		if cam.ID == "" {
			return fmt.Errorf("camera[%d]: id is required", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera %q: duplicate id", cam.ID)
		}
		seen[cam.ID] = true

		if cam.Policy == "" {
			cam.Policy = "detectionPolicy"
		}
		if _, err := policy.ParseKind(cam.Policy); err != nil {
			return fmt.Errorf("camera %q: %w", cam.ID, err)
		}
	}

	if cfg.NTP.TimeoutS <= 0 {
		cfg.NTP.TimeoutS = 5
	}
	if cfg.NTP.ResyncIntervalS <= 0 {
		cfg.NTP.ResyncIntervalS = 1000
	}

	if cfg.Paths.Calibrations == "" {
		cfg.Paths.Calibrations = DefaultCalibrationsPath
	}
	if cfg.Paths.Thresholds == "" {
		cfg.Paths.Thresholds = DefaultThresholdsPath
	}

	return nil
}
