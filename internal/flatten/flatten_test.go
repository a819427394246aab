package flatten

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"snapback/internal/catalog"
	"snapback/internal/config"
	"snapback/internal/logging"
	"snapback/internal/services"
)

func newTestFlattener(t *testing.T) *Flattener {
	t.Helper()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.ScratchDir = t.TempDir()
	cfg.FFmpeg.FlattenTimeoutSeconds = 30
	return New(cfg, logging.NewNop())
}

func writeZip(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, data := range members {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFlattenPassthroughForPlainMedia(t *testing.T) {
	f := newTestFlattener(t)
	source := filepath.Join(t.TempDir(), "mem-1.jpg")
	if err := os.WriteFile(source, encodeJPEG(t, solidImage(2, 2, color.White)), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := f.Flatten(context.Background(), "mem-1", catalog.MediaPhoto, source)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if res.Path != source || res.Composited {
		t.Errorf("result = %+v, want passthrough of %s", res, source)
	}
	if res.Kind != catalog.MediaPhoto {
		t.Errorf("kind = %s, want photo", res.Kind)
	}
}

func TestFlattenDetectsArchiveByMagicBytes(t *testing.T) {
	f := newTestFlattener(t)
	source := filepath.Join(t.TempDir(), "mem-2.bin")
	writeZip(t, source, map[string][]byte{
		"media.jpg": encodeJPEG(t, solidImage(2, 2, color.White)),
	})

	res, err := f.Flatten(context.Background(), "mem-2", catalog.MediaPhoto, source)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if res.Path == source {
		t.Error("archive was passed through instead of being unpacked")
	}
	if res.Composited {
		t.Error("single-member archive should not be marked composited")
	}
	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	want := encodeJPEG(t, solidImage(2, 2, color.White))
	if !bytes.Equal(got, want) {
		t.Error("copied member does not match the archive content")
	}
}

func TestFlattenCompositesImageOverlay(t *testing.T) {
	f := newTestFlattener(t)

	base := solidImage(4, 4, color.RGBA{R: 255, A: 255})
	overlay := image.NewRGBA(image.Rect(0, 0, 4, 4))
	overlay.Set(0, 0, color.RGBA{B: 255, A: 255})

	source := filepath.Join(t.TempDir(), "mem-3.zip")
	writeZip(t, source, map[string][]byte{
		"media.jpg":   encodeJPEG(t, base),
		"overlay.png": encodePNG(t, overlay),
	})

	res, err := f.Flatten(context.Background(), "mem-3", catalog.MediaPhoto, source)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if !res.Composited || res.Kind != catalog.MediaPhoto {
		t.Fatalf("result = %+v, want composited photo", res)
	}
	if filepath.Ext(res.Path) != ".jpg" {
		t.Errorf("output ext = %s, want .jpg", filepath.Ext(res.Path))
	}

	file, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	flat, _, err := image.Decode(file)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	r, _, b, _ := flat.At(0, 0).RGBA()
	if b <= r {
		t.Errorf("pixel (0,0) = %v, want overlay blue to dominate", flat.At(0, 0))
	}
	r, _, b, _ = flat.At(3, 3).RGBA()
	if r <= b {
		t.Errorf("pixel (3,3) = %v, want base red to show through transparent overlay", flat.At(3, 3))
	}
}

func TestFlattenRejectsAmbiguousArchives(t *testing.T) {
	white := encodeJPEG(t, solidImage(2, 2, color.White))
	overlay := encodePNG(t, solidImage(2, 2, color.Transparent))

	tests := []struct {
		name    string
		members map[string][]byte
	}{
		{"two main layers", map[string][]byte{"a.jpg": white, "b.jpg": white}},
		{"two overlays", map[string][]byte{"a.jpg": white, "overlay.png": overlay, "b-overlay.png": overlay}},
		{"no main layer", map[string][]byte{"overlay.png": overlay, "notes.txt": []byte("hi")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFlattener(t)
			source := filepath.Join(t.TempDir(), "mem.zip")
			writeZip(t, source, tt.members)

			_, err := f.Flatten(context.Background(), "mem", catalog.MediaPhoto, source)
			if !errors.Is(err, services.ErrAmbiguousArchive) {
				t.Fatalf("error = %v, want ErrAmbiguousArchive", err)
			}
		})
	}
}

func TestFlattenIgnoresUnrecognizedMembers(t *testing.T) {
	f := newTestFlattener(t)
	source := filepath.Join(t.TempDir(), "mem-4.zip")
	writeZip(t, source, map[string][]byte{
		"media.jpg":     encodeJPEG(t, solidImage(2, 2, color.White)),
		"metadata.json": []byte("{}"),
		".DS_Store":     []byte{0},
	})

	res, err := f.Flatten(context.Background(), "mem-4", catalog.MediaPhoto, source)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if res.Composited {
		t.Error("metadata members must not count as overlay")
	}
}

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"media.jpg", RoleMain},
		{"clip.MP4", RoleMain},
		{"overlay.png", RoleOverlay},
		{"abc123-overlay.png", RoleOverlay},
		{"abc123_overlay.png", RoleOverlay},
		{"overlay.jpg", RoleMain},
		{"notes.txt", RoleUnrecognized},
		{"sticker.png", RoleMain},
	}
	c := DefaultClassifier{}
	for _, tt := range tests {
		if got := c.Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestFlattenCompositesVideoWithFFmpeg(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"FLATTEN_HELPER_MODE=success",
			"FLATTEN_HELPER_OUT="+args[len(args)-1],
		)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	f := newTestFlattener(t)
	source := filepath.Join(t.TempDir(), "mem-5.zip")
	writeZip(t, source, map[string][]byte{
		"clip.mp4":    []byte("not a real video"),
		"overlay.png": encodePNG(t, solidImage(2, 2, color.Transparent)),
	})

	res, err := f.Flatten(context.Background(), "mem-5", catalog.MediaVideo, source)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if !res.Composited || res.Kind != catalog.MediaVideo {
		t.Fatalf("result = %+v, want composited video", res)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if len(capturedArgs) == 0 || capturedArgs[len(capturedArgs)-1] != res.Path {
		t.Errorf("ffmpeg args = %v, want output path last", capturedArgs)
	}
}

func TestFlattenVideoTimeoutFailsTheItem(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FLATTEN_HELPER_MODE=hang")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	f := newTestFlattener(t)
	f.timeout = 0.05

	source := filepath.Join(t.TempDir(), "mem-6.zip")
	writeZip(t, source, map[string][]byte{
		"clip.mp4":    []byte("not a real video"),
		"overlay.png": encodePNG(t, solidImage(2, 2, color.Transparent)),
	})

	_, err := f.Flatten(context.Background(), "mem-6", catalog.MediaVideo, source)
	if !errors.Is(err, services.ErrFlattenTimeout) {
		t.Fatalf("error = %v, want ErrFlattenTimeout", err)
	}
}

func TestFlattenVideoEncodeFailureReportsFlattenFailure(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FLATTEN_HELPER_MODE=fail")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	f := newTestFlattener(t)
	source := filepath.Join(t.TempDir(), "mem-7.zip")
	writeZip(t, source, map[string][]byte{
		"clip.mp4":    []byte("not a real video"),
		"overlay.png": encodePNG(t, solidImage(2, 2, color.Transparent)),
	})

	_, err := f.Flatten(context.Background(), "mem-7", catalog.MediaVideo, source)
	if !errors.Is(err, services.ErrFlattenFailed) {
		t.Fatalf("error = %v, want ErrFlattenFailed", err)
	}
	if errors.Is(err, services.ErrAmbiguousArchive) {
		t.Error("encode failure must not be classified as an archive layout problem")
	}
}

func TestFlattenUndecodableImageReportsFlattenFailure(t *testing.T) {
	f := newTestFlattener(t)
	source := filepath.Join(t.TempDir(), "mem-8.zip")
	writeZip(t, source, map[string][]byte{
		"media.jpg":   []byte("truncated jpeg"),
		"overlay.png": encodePNG(t, solidImage(2, 2, color.Transparent)),
	})

	_, err := f.Flatten(context.Background(), "mem-8", catalog.MediaPhoto, source)
	if !errors.Is(err, services.ErrFlattenFailed) {
		t.Fatalf("error = %v, want ErrFlattenFailed", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FLATTEN_HELPER_MODE") {
	case "success":
		if out := os.Getenv("FLATTEN_HELPER_OUT"); out != "" {
			os.WriteFile(out, []byte("flattened"), 0o644)
		}
		os.Exit(0)
	case "hang":
		time.Sleep(5 * time.Second)
		os.Exit(0)
	}
	os.Exit(1)
}
