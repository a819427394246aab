package ffprobe

import (
	"context"
	"os"
	"os/exec"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0 for unparseable value, got %v", result.DurationSeconds())
	}
	result = Result{Format: Format{Duration: "-4"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0 for negative value, got %v", result.DurationSeconds())
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectParsesHelperOutput(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "ffprobe", "/media/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 12.5 {
		t.Errorf("duration = %v, want 12.5", result.DurationSeconds())
	}
	if result.VideoStreamCount() != 1 {
		t.Errorf("video streams = %d, want 1", result.VideoStreamCount())
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264"}],"format":{"duration":"12.5","format_name":"mp4"}}`)
	os.Exit(0)
}
