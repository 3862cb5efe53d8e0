// Package emitter publishes adapter output to the MQTT broker.
package emitter

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Per-camera topic layout shared with the scene controller.
const (
	dataTopicPrefix             = "scenescape/data/camera/"
	imageTopicPrefix            = "scenescape/image/camera/"
	calibrationImageTopicPrefix = "scenescape/image/calibration/camera/"
	commandTopicPrefix          = "scenescape/cmd/camera/"
)

// DataTopic returns the frame record topic for a camera.
func DataTopic(cameraID string) string { return dataTopicPrefix + cameraID }

// ImageTopic returns the annotated image topic for a camera.
func ImageTopic(cameraID string) string { return imageTopicPrefix + cameraID }

// CalibrationImageTopic returns the raw calibration image topic for a camera.
func CalibrationImageTopic(cameraID string) string { return calibrationImageTopicPrefix + cameraID }

// CommandTopic returns the control topic for a camera.
func CommandTopic(cameraID string) string { return commandTopicPrefix + cameraID }

// Config contains broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	// RootCA enables TLS when it points at a readable CA bundle. A
	// configured but unreadable bundle falls back to plaintext with a
	// warning, matching how the broker side is usually staged.
	RootCA string
	QoS    map[string]byte
}

// Emitter wraps the MQTT client with publish stats and topic helpers.
type Emitter struct {
	cfg    Config
	Client mqtt.Client // exported for the control plane's subscriptions

	mu        sync.RWMutex
	connected bool
	published map[string]uint64
	errors    uint64
}

// New creates an emitter.
func New(cfg Config) *Emitter {
	return &Emitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection with auto-reconnect.
func (e *Emitter) Connect() error {
	scheme := "tcp"
	var tlsCfg *tls.Config
	if e.cfg.RootCA != "" {
		if pem, err := os.ReadFile(e.cfg.RootCA); err == nil {
			pool := x509.NewCertPool()
			if pool.AppendCertsFromPEM(pem) {
				tlsCfg = &tls.Config{RootCAs: pool}
				scheme = "ssl"
			} else {
				slog.Warn("root CA bundle contains no certificates", "path", e.cfg.RootCA)
			}
		} else {
			slog.Warn("root CA unreadable, connecting without TLS",
				"path", e.cfg.RootCA, "error", err)
		}
	}

	clientID := e.cfg.ClientID
	if clientID == "" {
		clientID = "sscape-adapter-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s", scheme, e.cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", clientID,
			"tls", tlsCfg != nil)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err, "broker", e.cfg.Broker)
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	return nil
}

// IsConnected reports whether the broker connection is up.
func (e *Emitter) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// QoS returns the configured QoS level for a message class.
func (e *Emitter) QoS(class string) byte {
	if qos, ok := e.cfg.QoS[class]; ok {
		return qos
	}
	return 0
}

// Publish publishes a payload to a topic.
func (e *Emitter) Publish(topic string, qos byte, payload []byte) error {
	if !e.IsConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("message published", "topic", topic, "qos", qos, "size", len(payload))

	return nil
}

// Disconnect closes the MQTT connection.
func (e *Emitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns a snapshot of publish statistics.
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Connected: e.connected, Published: published, Errors: e.errors}
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
