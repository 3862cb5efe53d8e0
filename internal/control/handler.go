// Package control handles the per-camera command topic.
//
// Commands arrive on the MQTT client's callback goroutine while the armed
// flags are read on the frame-processing path, so the flags are atomics:
// a single-writer/single-reader handoff with no further locking.
package control

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/sscape-adapter/internal/emitter"
)

// Recognized plaintext commands.
const (
	cmdGetImage            = "getimage"
	cmdGetCalibrationImage = "getcalibrationimage"
)

// Flags carries the one-shot image publish requests for one camera.
type Flags struct {
	publishImage            atomic.Bool
	publishCalibrationImage atomic.Bool
}

// ArmImage requests an annotated image publish on the next frame.
func (f *Flags) ArmImage() { f.publishImage.Store(true) }

// ArmCalibrationImage requests a raw image publish on the next frame.
func (f *Flags) ArmCalibrationImage() { f.publishCalibrationImage.Store(true) }

// TakeImage consumes the annotated image request if armed.
func (f *Flags) TakeImage() bool { return f.publishImage.CompareAndSwap(true, false) }

// TakeCalibrationImage consumes the raw image request if armed.
func (f *Flags) TakeCalibrationImage() bool {
	return f.publishCalibrationImage.CompareAndSwap(true, false)
}

// Handler subscribes to one camera's command topic and arms its flags.
type Handler struct {
	cameraID string
	client   mqtt.Client
	qos      byte
	flags    *Flags
}

// NewHandler creates a control handler for one camera.
func NewHandler(client mqtt.Client, cameraID string, qos byte, flags *Flags) *Handler {
	return &Handler{cameraID: cameraID, client: client, qos: qos, flags: flags}
}

// Start subscribes to the camera's command topic.
func (h *Handler) Start() error {
	topic := emitter.CommandTopic(h.cameraID)

	token := h.client.Subscribe(topic, h.qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("command subscription timeout for camera %s", h.cameraID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("command subscription failed for camera %s: %w", h.cameraID, err)
	}

	slog.Info("subscribed to camera commands", "camera", h.cameraID, "topic", topic)
	return nil
}

// Stop unsubscribes from the command topic.
func (h *Handler) Stop() {
	if h.client != nil && h.client.IsConnected() {
		h.client.Unsubscribe(emitter.CommandTopic(h.cameraID)).Wait()
	}
}

func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	cmd := string(msg.Payload())
	switch cmd {
	case cmdGetImage:
		h.flags.ArmImage()
		slog.Info("image publish armed", "camera", h.cameraID)
	case cmdGetCalibrationImage:
		h.flags.ArmCalibrationImage()
		slog.Info("calibration image publish armed", "camera", h.cameraID)
	default:
		slog.Debug("ignoring unknown camera command", "camera", h.cameraID, "command", cmd)
	}
}
