// Package timefilter maintains the smoothed per-camera frame rate and the
// optional network-time-corrected capture timestamp.
package timefilter

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"

	"github.com/visiona/sscape-adapter/internal/types"
)

// Defaults for the rate estimator and network time correction.
const (
	DefaultAlpha          = 0.75
	DefaultInitialRate    = 5.0
	DefaultCalcInterval   = time.Second
	DefaultResyncInterval = 1000 * time.Second
	DefaultQueryTimeout   = 5 * time.Second
)

// TimeSource reports the local clock's offset from a reference clock. The
// query is a blocking network round trip bounded by the source's own
// timeout.
type TimeSource interface {
	Offset() (time.Duration, error)
}

// NTPSource queries an NTP server for the clock offset.
type NTPSource struct {
	Host    string
	Timeout time.Duration
}

// Offset implements TimeSource.
func (s *NTPSource) Offset() (time.Duration, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	resp, err := ntp.QueryWithOptions(s.Host, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", s.Host, err)
	}
	return resp.ClockOffset, nil
}

// Config tunes the filter; zero values select the defaults above.
type Config struct {
	Alpha          float64
	InitialRate    float64
	CalcInterval   time.Duration
	ResyncInterval time.Duration
}

// Filter estimates the frame rate with an exponential moving average and
// applies the current network time offset to capture timestamps. One
// filter instance belongs to one camera's processing thread; it is not
// safe for concurrent use.
type Filter struct {
	alpha          float64
	calcInterval   time.Duration
	resyncInterval time.Duration
	source         TimeSource

	rate     float64
	frames   int
	anchor   time.Time
	offset   time.Duration
	lastSync time.Time
}

// New creates a filter. source may be nil, disabling time correction.
func New(cfg Config, source TimeSource) *Filter {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.InitialRate <= 0 {
		cfg.InitialRate = DefaultInitialRate
	}
	if cfg.CalcInterval <= 0 {
		cfg.CalcInterval = DefaultCalcInterval
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = DefaultResyncInterval
	}
	return &Filter{
		alpha:          cfg.Alpha,
		calcInterval:   cfg.CalcInterval,
		resyncInterval: cfg.ResyncInterval,
		source:         source,
		rate:           cfg.InitialRate,
	}
}

// OnFrame advances the filter by one frame and returns the corrected
// capture timestamp. A failed time resync keeps the previous offset and is
// reported as a recoverable error alongside a still-valid timestamp; the
// next attempt waits a full resync interval so a dead server cannot stall
// frame delivery.
func (f *Filter) OnFrame(now time.Time) (time.Time, error) {
	f.frames++
	if f.anchor.IsZero() {
		f.anchor = now
	}
	if elapsed := now.Sub(f.anchor); elapsed > f.calcInterval {
		instantaneous := float64(f.frames) / elapsed.Seconds()
		f.rate = f.rate*f.alpha + (1-f.alpha)*instantaneous
		f.anchor = now
		f.frames = 0
	}

	var syncErr error
	if f.source != nil && (f.lastSync.IsZero() || now.Sub(f.lastSync) > f.resyncInterval) {
		offset, err := f.source.Offset()
		if err != nil {
			syncErr = fmt.Errorf("time resync failed, keeping previous offset: %w", err)
		} else {
			f.offset = offset
		}
		f.lastSync = now
	}

	return now.Add(f.offset), syncErr
}

// Rate returns the current smoothed frame rate estimate.
func (f *Filter) Rate() float64 {
	return f.rate
}

// Offset returns the current additive time correction.
func (f *Filter) Offset() time.Duration {
	return f.offset
}

// Stamp advances the filter and builds the capture-stamp message the
// post-decode stage attaches to the frame.
func (f *Filter) Stamp(now time.Time) (types.CaptureStamp, error) {
	corrected, err := f.OnFrame(now)
	return types.CaptureStamp{
		PostDecodeTimestamp:   types.FormatTimestamp(corrected),
		TimestampForNextBlock: types.EpochSeconds(corrected),
		FPS:                   f.rate,
	}, err
}
