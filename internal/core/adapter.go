// Package core wires the adapter stages into the per-camera pipeline.
package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/visiona/sscape-adapter/internal/aggregate"
	"github.com/visiona/sscape-adapter/internal/annotate"
	"github.com/visiona/sscape-adapter/internal/control"
	"github.com/visiona/sscape-adapter/internal/emitter"
	"github.com/visiona/sscape-adapter/internal/metrics"
	"github.com/visiona/sscape-adapter/internal/timefilter"
	"github.com/visiona/sscape-adapter/internal/types"
)

// Adapter runs both pipeline stages for one camera: the post-decode stage
// stamps frames with a corrected capture timestamp, the post-inference
// stage aggregates raw metadata and publishes the frame record. Both run
// on the camera's single processing thread.
type Adapter struct {
	cameraID string
	filter   *timefilter.Filter
	agg      *aggregate.Aggregator
	emitter  *emitter.Emitter
	flags    *control.Flags
	metrics  *metrics.Metrics
	clock    func() time.Time
}

// NewAdapter assembles the per-camera pipeline.
func NewAdapter(cameraID string, filter *timefilter.Filter, agg *aggregate.Aggregator,
	em *emitter.Emitter, flags *control.Flags, m *metrics.Metrics) *Adapter {
	return &Adapter{
		cameraID: cameraID,
		filter:   filter,
		agg:      agg,
		emitter:  em,
		flags:    flags,
		metrics:  m,
		clock:    time.Now,
	}
}

// Flags returns the camera's one-shot image publish flags.
func (a *Adapter) Flags() *control.Flags {
	return a.flags
}

// StampFrame is the post-decode stage: it attaches the capture stamp to
// the frame. A failed time resync keeps the previous offset; the stamp is
// still attached.
func (a *Adapter) StampFrame(frame types.Frame) {
	stamp, err := a.filter.Stamp(a.clock())
	if err != nil {
		slog.Warn("network time resync failed", "camera", a.cameraID, "error", err)
		a.metrics.TimeSyncFailures.Add(1)
	}

	payload, err := json.Marshal(stamp)
	if err != nil {
		slog.Error("capture stamp marshal failed", "camera", a.cameraID, "error", err)
		return
	}
	frame.AddMessage(string(payload))
	a.metrics.FramesStamped.Add(1)
}

// PublishFrame is the post-inference stage: it merges the frame's metadata
// messages, folds them into the frame record, serves any armed one-shot
// image publish, publishes the record, and attaches it back onto the frame
// for downstream pipeline elements.
//
// The only error returned is an unresolvable calibration, which is a
// configuration fault the caller should treat as fatal for the camera.
func (a *Adapter) PublishFrame(frame types.Frame) error {
	md := mergeMessages(a.cameraID, frame.Messages())

	rec, err := a.agg.Ingest(md)
	if err != nil {
		return fmt.Errorf("camera %s: %w", a.cameraID, err)
	}

	if a.flags.TakeImage() {
		a.publishImage(frame, rec, true)
	}
	if a.flags.TakeCalibrationImage() {
		a.publishImage(frame, rec, false)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("camera %s: frame record marshal: %w", a.cameraID, err)
	}

	if err := a.emitter.Publish(emitter.DataTopic(a.cameraID), a.emitter.QoS("data"), payload); err != nil {
		slog.Error("frame record publish failed", "camera", a.cameraID, "error", err)
		a.metrics.PublishErrors.Add(1)
	} else {
		a.metrics.FramesPublished.Add(1)
		for _, records := range rec.Objects {
			a.metrics.ObjectsPublished.Add(uint64(len(records)))
		}
	}

	frame.AddMessage(string(payload))
	return nil
}

// publishImage serves one armed image request. Image failures are logged
// and dropped; they never disturb frame record publication.
func (a *Adapter) publishImage(frame types.Frame, rec *types.FrameRecord, annotated bool) {
	img, err := frame.Image()
	if err != nil {
		slog.Warn("frame image unavailable", "camera", a.cameraID, "error", err)
		return
	}

	if annotated {
		annotate.DrawObjects(img, rec.Objects)
		annotate.DrawFPS(img, rec.Rate)
	}

	encoded, err := annotate.EncodeJPEG(img)
	if err != nil {
		slog.Warn("frame image encode failed", "camera", a.cameraID, "error", err)
		return
	}

	msg := types.ImageMessage{
		Timestamp: rec.Timestamp,
		ID:        a.cameraID,
		Image:     encoded,
	}
	if in := a.agg.Intrinsics(); in != nil {
		msg.Intrinsics = &in.Matrix
		msg.Distortion = &in.Distortion
	}

	payload, err := json.Marshal(&msg)
	if err != nil {
		slog.Error("image message marshal failed", "camera", a.cameraID, "error", err)
		return
	}

	topic := emitter.ImageTopic(a.cameraID)
	if !annotated {
		topic = emitter.CalibrationImageTopic(a.cameraID)
	}
	if err := a.emitter.Publish(topic, a.emitter.QoS("image"), payload); err != nil {
		slog.Error("image publish failed", "camera", a.cameraID, "topic", topic, "error", err)
		a.metrics.PublishErrors.Add(1)
		return
	}
	a.metrics.ImagesPublished.Add(1)
}

// mergeMessages folds the frame's stage messages into one metadata struct.
// Each stage attaches only the fields it owns, so later messages fill in
// what earlier ones left unset. Malformed messages are skipped.
func mergeMessages(cameraID string, messages []string) *types.RawMetadata {
	md := &types.RawMetadata{}
	for _, msg := range messages {
		if err := json.Unmarshal([]byte(msg), md); err != nil {
			slog.Warn("skipping malformed frame message", "camera", cameraID, "error", err)
		}
	}
	return md
}
