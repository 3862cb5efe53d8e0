package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/visiona/sscape-adapter/internal/aggregate"
	"github.com/visiona/sscape-adapter/internal/config"
	"github.com/visiona/sscape-adapter/internal/control"
	"github.com/visiona/sscape-adapter/internal/emitter"
	"github.com/visiona/sscape-adapter/internal/gate"
	"github.com/visiona/sscape-adapter/internal/metrics"
	"github.com/visiona/sscape-adapter/internal/policy"
	"github.com/visiona/sscape-adapter/internal/timefilter"
)

// Service owns the broker connection and one adapter per configured
// camera.
type Service struct {
	cfg      *config.Config
	emitter  *emitter.Emitter
	metrics  *metrics.Metrics
	adapters map[string]*Adapter
	handlers []*control.Handler
	httpSrv  *http.Server
}

// NewService builds the full adapter set from configuration. Threshold and
// calibration sources are loaded once here; a missing source degrades per
// its documented fallback, while an invalid policy name fails construction.
func NewService(cfg *config.Config) (*Service, error) {
	m := metrics.New()

	em := emitter.New(emitter.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.InstanceID,
		RootCA:   cfg.MQTT.RootCA,
		QoS:      cfg.MQTT.QoS,
	})

	table := gate.Load(cfg.Paths.Thresholds)
	calibrations := config.LoadCalibrations(cfg.Paths.Calibrations)

	var source timefilter.TimeSource
	if cfg.NTP.Server != "" {
		source = &timefilter.NTPSource{
			Host:    cfg.NTP.Server,
			Timeout: time.Duration(cfg.NTP.TimeoutS) * time.Second,
		}
	}

	adapters := make(map[string]*Adapter, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		pol, err := policy.New(cam.Policy, cam.ClassificationField)
		if err != nil {
			return nil, fmt.Errorf("camera %q: %w", cam.ID, err)
		}

		var calib *aggregate.Calibration
		if c, ok := calibrations[cam.ID]; ok {
			calib = &aggregate.Calibration{Intrinsics: c.Intrinsics, Distortion: c.Distortion}
		} else {
			slog.Info("no calibration for camera, intrinsics will not be published",
				"camera", cam.ID)
		}

		filter := timefilter.New(timefilter.Config{
			Alpha:          cfg.Rate.Alpha,
			InitialRate:    cfg.Rate.InitialFPS,
			CalcInterval:   time.Duration(cfg.Rate.CalcIntervalS * float64(time.Second)),
			ResyncInterval: time.Duration(cfg.NTP.ResyncIntervalS) * time.Second,
		}, source)

		flags := &control.Flags{}
		if cam.PublishImage {
			flags.ArmImage()
		}

		agg := aggregate.New(cam.ID, pol, table, calib, m)
		adapters[cam.ID] = NewAdapter(cam.ID, filter, agg, em, flags, m)

		slog.Info("camera adapter ready",
			"camera", cam.ID,
			"policy", pol.Kind().String(),
			"calibrated", calib != nil)
	}

	return &Service{
		cfg:      cfg,
		emitter:  em,
		metrics:  m,
		adapters: adapters,
	}, nil
}

// Start connects to the broker, subscribes the per-camera control topics,
// and brings up the metrics endpoint when configured.
func (s *Service) Start() error {
	if err := s.emitter.Connect(); err != nil {
		return err
	}

	for id, adapter := range s.adapters {
		handler := control.NewHandler(s.emitter.Client, id, s.emitter.QoS("cmd"), adapter.Flags())
		if err := handler.Start(); err != nil {
			return err
		}
		s.handlers = append(s.handlers, handler)
	}

	if s.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.httpSrv = &http.Server{Addr: s.cfg.Metrics.Listen, Handler: mux}
		go func() {
			slog.Info("metrics endpoint listening", "addr", s.cfg.Metrics.Listen)
			if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	return nil
}

// Adapter returns the adapter for a camera id, or nil when unknown.
func (s *Service) Adapter(cameraID string) *Adapter {
	return s.adapters[cameraID]
}

// Metrics returns the shared counters.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Shutdown stops the control handlers, the metrics endpoint and the broker
// connection.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, handler := range s.handlers {
		handler.Stop()
	}
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("metrics endpoint shutdown failed", "error", err)
		}
	}
	s.emitter.Disconnect()
	return nil
}
