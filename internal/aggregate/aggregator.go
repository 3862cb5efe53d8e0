// Package aggregate assembles one consolidated frame record per camera
// from raw per-frame inference metadata.
package aggregate

import (
	"log/slog"
	"time"

	"github.com/visiona/sscape-adapter/internal/gate"
	"github.com/visiona/sscape-adapter/internal/geometry"
	"github.com/visiona/sscape-adapter/internal/metrics"
	"github.com/visiona/sscape-adapter/internal/policy"
	"github.com/visiona/sscape-adapter/internal/types"
)

// Calibration is the raw calibration description for one camera as loaded
// from the calibration source. Both fields keep the heterogeneous decoded
// JSON shape; resolution happens lazily once the frame size is known.
type Calibration struct {
	Intrinsics any
	Distortion any
}

// Aggregator holds the per-camera aggregation state. One goroutine owns an
// aggregator at a time; frames for the same camera must be serialized by
// the caller.
//
// The aggregator moves through three monotonic states: resolution unknown,
// resolution known, intrinsics resolved. Resolution latches on first
// sight and intrinsics are resolved at most once per camera lifetime.
type Aggregator struct {
	cameraID string
	gate     *gate.Table
	policy   *policy.Policy
	calib    *Calibration
	metrics  *metrics.Metrics
	clock    func() time.Time

	record     types.FrameRecord
	resolution *types.Resolution
	intrinsics *geometry.Intrinsics
}

// New creates the aggregator for one camera. calib may be nil when the
// calibration source has no entry for the camera; the published records
// then simply never carry intrinsics. m may be nil.
func New(cameraID string, pol *policy.Policy, table *gate.Table, calib *Calibration, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		cameraID: cameraID,
		gate:     table,
		policy:   pol,
		calib:    calib,
		metrics:  m,
		clock:    time.Now,
		record: types.FrameRecord{
			ID:       cameraID,
			DebugMAC: types.MACAddress(),
			Objects:  map[string][]*types.ObjectRecord{},
		},
	}
}

// Ingest folds one frame's raw metadata into the camera's frame record and
// returns it. The returned record is mutated in place across frames; it
// must be serialized before the next Ingest call.
//
// The only error path is an unresolvable calibration, which is a
// configuration fault and should abort the camera rather than degrade
// silently.
func (a *Aggregator) Ingest(md *types.RawMetadata) (*types.FrameRecord, error) {
	now := a.clock()
	a.record.Timestamp = md.PostDecodeTimestamp
	a.record.DebugTimestampEnd = types.FormatTimestamp(now)
	a.record.DebugProcessingTime = types.EpochSeconds(now) - md.TimestampForNextBlock
	a.record.Rate = md.FPS

	objects := make(map[string][]*types.ObjectRecord)
	if len(md.Objects) > 0 && md.Resolution != nil {
		fw, fh := md.Resolution.Width, md.Resolution.Height
		for i := range md.Objects {
			det := &md.Objects[i]
			if !a.gate.ShouldKeep(det.Detection.Label, det.Detection.Confidence) {
				// Low confidence is expected filtering, not an error:
				// no record, no log noise.
				if a.metrics != nil {
					a.metrics.DetectionsRejected.Add(1)
				}
				continue
			}
			rec, err := a.policy.Build(det, fw, fh)
			if err != nil {
				slog.Warn("skipping malformed detection",
					"camera", a.cameraID, "label", det.Detection.Label, "error", err)
				if a.metrics != nil {
					a.metrics.MalformedDetections.Add(1)
				}
				continue
			}
			rec.ID = len(objects[rec.Category]) + 1
			objects[rec.Category] = append(objects[rec.Category], rec)
		}
	}
	a.record.Objects = objects

	// First reported resolution wins for the camera's lifetime.
	if a.resolution == nil && md.Resolution != nil {
		r := *md.Resolution
		a.resolution = &r
	}

	if a.intrinsics == nil && a.resolution != nil && a.calib != nil && a.calib.Intrinsics != nil {
		in, err := geometry.New(a.calib.Intrinsics, a.calib.Distortion,
			a.resolution.Width, a.resolution.Height)
		if err != nil {
			return &a.record, err
		}
		a.intrinsics = in
		params := in.Params()
		a.record.Intrinsics = &params
		a.record.Distortion = &in.Distortion
	}

	return &a.record, nil
}

// Intrinsics returns the resolved camera intrinsics, or nil before the
// intrinsics latch has fired.
func (a *Aggregator) Intrinsics() *geometry.Intrinsics {
	return a.intrinsics
}

// Resolution returns the latched frame resolution, or nil before any frame
// reported one.
func (a *Aggregator) Resolution() *types.Resolution {
	return a.resolution
}
