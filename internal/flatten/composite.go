package flatten

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strings"
	"time"

	"snapback/internal/services"
)

var commandContext = exec.CommandContext

const jpegQuality = 92

// compositeImage draws the overlay PNG over the base frame and writes the
// flattened result as JPEG. The overlay is anchored at the top-left corner;
// export overlays share the base frame's dimensions.
func compositeImage(mainPath, overlayPath, outPath string) error {
	base, err := decodeImage(mainPath)
	if err != nil {
		return services.Wrap(services.ErrFlattenFailed, "flatten", "composite", "decode base frame", err)
	}
	overlay, err := decodeImage(overlayPath)
	if err != nil {
		return services.Wrap(services.ErrFlattenFailed, "flatten", "composite", "decode overlay", err)
	}

	canvas := image.NewRGBA(base.Bounds())
	draw.Draw(canvas, canvas.Bounds(), base, base.Bounds().Min, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), overlay, overlay.Bounds().Min, draw.Over)

	out, err := os.Create(outPath)
	if err != nil {
		return services.Wrap(services.ErrFlattenFailed, "flatten", "composite", "create output", err)
	}
	if err := jpeg.Encode(out, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		os.Remove(outPath)
		return services.Wrap(services.ErrFlattenFailed, "flatten", "composite", "encode jpeg", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return services.Wrap(services.ErrFlattenFailed, "flatten", "composite", "flush output", err)
	}
	return nil
}

func decodeImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	return img, err
}

// compositeVideo burns the overlay PNG onto the video with ffmpeg. The
// whole invocation runs under the flatten timeout; a stuck encode kills
// the process and fails the item, not the run.
func (f *Flattener) compositeVideo(ctx context.Context, mainPath, overlayPath, outPath string) error {
	timeout := time.Duration(f.timeout * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", mainPath,
		"-i", overlayPath,
		"-filter_complex", "[0:v][1:v]overlay=0:0:format=auto",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-map", "0:a?",
		"-c:a", "copy",
		"-movflags", "+faststart",
		outPath,
	}
	cmd := commandContext(runCtx, f.ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	os.Remove(outPath)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrFlattenTimeout, "flatten", "composite",
			fmt.Sprintf("ffmpeg exceeded %s", timeout), err)
	}
	detail := strings.TrimSpace(tailLines(stderr.String(), 5))
	if detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return services.Wrap(services.ErrFlattenFailed, "flatten", "composite", "ffmpeg overlay failed", err)
}

// tailLines returns the last n lines of text, enough stderr to diagnose an
// ffmpeg failure without logging the whole transcript.
func tailLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
