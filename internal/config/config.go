// Package config loads and validates the adapter configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete adapter configuration.
type Config struct {
	InstanceID string         `yaml:"instance_id"`
	MQTT       MQTTConfig     `yaml:"mqtt"`
	NTP        NTPConfig      `yaml:"ntp"`
	Paths      PathsConfig    `yaml:"paths"`
	Rate       RateConfig     `yaml:"rate"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Cameras    []CameraConfig `yaml:"cameras"`
}

// MQTTConfig contains MQTT broker settings.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	RootCA string          `yaml:"root_ca"` // empty: ROOT_CA env, then default path
	QoS    map[string]byte `yaml:"qos"`
}

// NTPConfig contains network time correction settings. An empty server
// disables correction.
type NTPConfig struct {
	Server          string `yaml:"server"`
	TimeoutS        int    `yaml:"timeout_s"`
	ResyncIntervalS int    `yaml:"resync_interval_s"`
}

// PathsConfig locates the read-only startup sources.
type PathsConfig struct {
	Calibrations string `yaml:"calibrations"`
	Thresholds   string `yaml:"thresholds"`
}

// RateConfig tunes the frame rate estimator.
type RateConfig struct {
	Alpha         float64 `yaml:"alpha"`
	InitialFPS    float64 `yaml:"initial_fps"`
	CalcIntervalS float64 `yaml:"calc_interval_s"`
}

// MetricsConfig contains the metrics endpoint settings. An empty listen
// address disables the endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// CameraConfig defines one camera handled by this adapter instance.
type CameraConfig struct {
	ID     string `yaml:"id"`
	Policy string `yaml:"policy"`
	// ClassificationField names the raw-detection key the classification
	// policy reads its label from; model-specific, empty uses the built-in
	// default.
	ClassificationField string `yaml:"classification_field,omitempty"`
	// PublishImage arms an annotated image publish on the first frame.
	PublishImage bool `yaml:"publish_image"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
