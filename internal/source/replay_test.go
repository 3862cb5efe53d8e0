package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/visiona/sscape-adapter/internal/types"
)

type recordingStage struct {
	stamped   int
	published []types.Frame
}

func (s *recordingStage) StampFrame(frame types.Frame) {
	s.stamped++
	frame.AddMessage(`{"postdecode_timestamp": "2025-06-01T12:00:00.000Z", "fps": 5.0}`)
}

func (s *recordingStage) PublishFrame(frame types.Frame) error {
	s.published = append(s.published, frame)
	return nil
}

func TestReplayFeedsEveryLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	content := `{"resolution": {"width": 640, "height": 480}, "objects": []}
{"resolution": {"width": 640, "height": 480}}

{"objects": []}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write replay file: %v", err)
	}

	stage := &recordingStage{}
	if err := NewReplay(path, 0).Run(context.Background(), stage); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Blank line is skipped; three frames flow through both stages.
	if stage.stamped != 3 {
		t.Errorf("stamped %d frames, want 3", stage.stamped)
	}
	if len(stage.published) != 3 {
		t.Fatalf("published %d frames, want 3", len(stage.published))
	}

	// Stamp message precedes the replayed metadata line.
	msgs := stage.published[0].Messages()
	if len(msgs) != 2 {
		t.Fatalf("frame carries %d messages, want 2", len(msgs))
	}
}

func TestReplayMissingFile(t *testing.T) {
	err := NewReplay(filepath.Join(t.TempDir(), "nope.jsonl"), 0).Run(context.Background(), &recordingStage{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFrameImageMatchesSize(t *testing.T) {
	frame := NewFrame(320, 240)
	img, err := frame.Image()
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
		t.Errorf("image bounds = %v", img.Bounds())
	}
}
