package encoder_test

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"montage/internal/encoder"
	"montage/internal/engine"
	"montage/internal/media"
	"montage/internal/services"
	"montage/internal/services/drapto"
)

// fakeFFmpeg records its arguments in the output file, its stdin in
// <output>.stdin and any concat list in <output>.list.
const fakeFFmpeg = `prev=""
list=""
for a; do
  if [ "$prev" = "-i" ]; then
    case "$a" in *.txt) list="$a";; esac
  fi
  prev="$a"
done
out="$prev"
cat > "$out.stdin"
if [ -n "$list" ]; then cp "$list" "$out.list"; fi
printf 'frame=2\nfps=10.0\nspeed=1.5x\nout_time=00:00:00.200000\nprogress=end\n' >&2
printf '%s\n' "$*" > "$out"`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func solidFrames(n, w, h int) []*image.RGBA {
	frames := make([]*image.RGBA, n)
	for i := range frames {
		frames[i] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return frames
}

func TestSinkPipesRawFrames(t *testing.T) {
	var progress []encoder.Progress
	exec := encoder.NewExecutor(writeScript(t, fakeFFmpeg), encoder.WithProgress(func(p encoder.Progress) {
		progress = append(progress, p)
	}))
	dir := t.TempDir()
	sink := encoder.NewFFmpegSink(exec, dir, encoder.Settings{CRF: -1, Preset: "fast"}, nil)

	ctx := services.WithChunk(services.WithRenderID(context.Background(), "r1"), 3)
	format := engine.Format{FPS: 10, Width: 4, Height: 2, SampleRate: 100}
	path, err := sink.Write(ctx, solidFrames(2, 4, 2), media.NewSilence(100, 0.1), format)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if want := filepath.Join(dir, "r1-chunk-0003.mp4"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	args, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-f rawvideo", "-pix_fmt rgba", "-s 4x2", "-r 10", "-i pipe:0", "-f f32le", "-ar 100", "-c:v libx264", "-crf 20", "-preset fast", "-c:a aac", "-progress pipe:2"} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
	stdin, err := os.ReadFile(path + ".stdin")
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if got, want := len(stdin), 2*4*2*4; got != want {
		t.Fatalf("stdin bytes = %d, want %d", got, want)
	}
	if len(progress) != 1 || progress[0].Frame != 2 || progress[0].Speed != "1.5x" {
		t.Fatalf("progress = %+v", progress)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "montage-audio-*"))
	if len(leftovers) != 0 {
		t.Fatalf("audio temp files not removed: %v", leftovers)
	}
}

func TestSinkWritesSubImageRows(t *testing.T) {
	exec := encoder.NewExecutor(writeScript(t, fakeFFmpeg))
	dir := t.TempDir()
	sink := encoder.NewFFmpegSink(exec, dir, encoder.Settings{}, nil)

	big := image.NewRGBA(image.Rect(0, 0, 6, 4))
	sub := big.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	path, err := sink.Write(context.Background(), []*image.RGBA{sub}, media.AudioBuffer{}, engine.Format{FPS: 25, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	stdin, err := os.ReadFile(path + ".stdin")
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if len(stdin) != 2*2*4 {
		t.Fatalf("stdin bytes = %d, want 16", len(stdin))
	}
	if !strings.HasPrefix(filepath.Base(path), "render-") {
		t.Fatalf("unexpected artifact name %q", path)
	}
}

func TestSinkRejectsMismatchedFrames(t *testing.T) {
	sink := encoder.NewFFmpegSink(encoder.NewExecutor(writeScript(t, fakeFFmpeg)), t.TempDir(), encoder.Settings{}, nil)
	_, err := sink.Write(context.Background(), solidFrames(1, 3, 3), media.AudioBuffer{}, engine.Format{FPS: 10, Width: 4, Height: 4})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("error = %v, want ErrEncoding", err)
	}
	_, err = sink.Write(context.Background(), nil, media.AudioBuffer{}, engine.Format{FPS: 10, Width: 4, Height: 4})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("empty frames error = %v, want ErrEncoding", err)
	}
}

func TestSinkReportsFFmpegFailure(t *testing.T) {
	script := writeScript(t, `echo "Unknown encoder 'nope'" >&2
exit 1`)
	sink := encoder.NewFFmpegSink(encoder.NewExecutor(script), t.TempDir(), encoder.Settings{VideoCodec: "nope"}, nil)
	_, err := sink.Write(context.Background(), solidFrames(4, 8, 8), media.NewSilence(48000, 0.4), engine.Format{FPS: 10, Width: 8, Height: 8})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("error = %v, want ErrEncoding", err)
	}
	if !strings.Contains(err.Error(), "Unknown encoder") {
		t.Fatalf("error %q should carry ffmpeg stderr", err)
	}
}

func TestStitchWritesConcatList(t *testing.T) {
	exec := encoder.NewExecutor(writeScript(t, fakeFFmpeg))
	stitcher := encoder.NewStitcher(exec, nil)
	dir := t.TempDir()
	inputs := []string{filepath.Join(dir, "r-chunk-0000.mp4"), filepath.Join(dir, "it's-chunk-0001.mp4")}
	output := filepath.Join(dir, "out", "final.mp4")

	path, err := stitcher.Stitch(context.Background(), inputs, output)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if path != output {
		t.Fatalf("path = %q, want %q", path, output)
	}
	args, _ := os.ReadFile(output)
	for _, want := range []string{"-f concat", "-safe 0", "-c copy"} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
	list, err := os.ReadFile(output + ".list")
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	want := "file '" + inputs[0] + "'\nfile '" + strings.ReplaceAll(inputs[1], "'", `'\''`) + "'\n"
	if string(list) != want {
		t.Fatalf("list = %q, want %q", list, want)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "out", "montage-concat-*"))
	if len(leftovers) != 0 {
		t.Fatalf("concat list not removed: %v", leftovers)
	}
}

func TestStitchMovesSingleInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "chunk.mp4")
	if err := os.WriteFile(input, []byte("data"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	stitcher := encoder.NewStitcher(encoder.NewExecutor(filepath.Join(dir, "missing-ffmpeg")), nil)
	output := filepath.Join(dir, "final.mp4")
	if _, err := stitcher.Stitch(context.Background(), []string{input}, output); err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if data, err := os.ReadFile(output); err != nil || string(data) != "data" {
		t.Fatalf("output = %q, %v", data, err)
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Fatalf("input should be moved, stat err = %v", err)
	}
}

func TestStitchRequiresInputs(t *testing.T) {
	_, err := encoder.NewStitcher(nil, nil).Stitch(context.Background(), nil, "out.mp4")
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("error = %v, want ErrEncoding", err)
	}
}

type fakeDrapto struct {
	input, outputDir string
	err              error
}

func (f *fakeDrapto) Encode(_ context.Context, input, outputDir string, progress func(drapto.ProgressUpdate)) (string, error) {
	f.input, f.outputDir = input, outputDir
	if f.err != nil {
		return "", f.err
	}
	progress(drapto.ProgressUpdate{Percent: 50, Stage: "encoding"})
	progress(drapto.ProgressUpdate{Warning: "low bitrate"})
	return filepath.Join(outputDir, "final.mkv"), nil
}

func TestFinisherUsesClient(t *testing.T) {
	client := &fakeDrapto{}
	finisher := encoder.NewFinisher(client, "/out", nil)
	path, err := finisher.Finish(context.Background(), "/work/final.mp4")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if path != filepath.Join("/out", "final.mkv") || client.input != "/work/final.mp4" {
		t.Fatalf("path = %q, input = %q", path, client.input)
	}

	client.err = errors.New("svt-av1 crashed")
	if _, err := finisher.Finish(context.Background(), "/work/final.mp4"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
}
