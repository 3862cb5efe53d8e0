// Package source provides a JSON-lines metadata replay that drives the
// adapter stages outside a live pipeline, for local runs and testing.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"time"

	"github.com/visiona/sscape-adapter/internal/types"
)

// Frame is a synthetic frame carrying replayed metadata over a blank
// image. It satisfies the pipeline frame contract.
type Frame struct {
	messages []string
	width    int
	height   int
}

// NewFrame creates a replay frame with the given image size.
func NewFrame(width, height int) *Frame {
	return &Frame{width: width, height: height}
}

// Messages implements types.Frame.
func (f *Frame) Messages() []string { return f.messages }

// AddMessage implements types.Frame.
func (f *Frame) AddMessage(msg string) { f.messages = append(f.messages, msg) }

// Image implements types.Frame.
func (f *Frame) Image() (draw.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, f.width, f.height)), nil
}

// Stage is the per-camera pipeline the replay drives.
type Stage interface {
	StampFrame(frame types.Frame)
	PublishFrame(frame types.Frame) error
}

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// Replay feeds raw inference metadata, one JSON object per line, through
// an adapter at a fixed pace.
type Replay struct {
	path     string
	interval time.Duration
}

// NewReplay creates a replay over a JSON-lines metadata file. fps bounds
// the replay pace; zero or negative replays as fast as possible.
func NewReplay(path string, fps float64) *Replay {
	var interval time.Duration
	if fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}
	return &Replay{path: path, interval: interval}
}

// Run replays the file through the stage until EOF or cancellation.
func (r *Replay) Run(ctx context.Context, stage Stage) error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	frames := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		frame := NewFrame(frameSize(line))
		stage.StampFrame(frame)
		frame.AddMessage(string(line))
		if err := stage.PublishFrame(frame); err != nil {
			return err
		}
		frames++

		if r.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.interval):
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}

	slog.Info("replay finished", "path", r.path, "frames", frames)
	return nil
}

// frameSize picks the synthetic image size from the replayed metadata's
// resolution, defaulting when absent.
func frameSize(line []byte) (int, int) {
	var md types.RawMetadata
	if err := json.Unmarshal(line, &md); err == nil && md.Resolution != nil {
		return md.Resolution.Width, md.Resolution.Height
	}
	return defaultWidth, defaultHeight
}
