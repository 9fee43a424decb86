// Package ffmpeg decodes container files into frames and audio by piping
// raw output from the ffmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/media/ffprobe"
)

// Source is a media.Handle backed by a file on disk.
type Source struct {
	binary string
	path   string
	probe  ffprobe.Result
	video  *ffprobe.Stream
	logger *slog.Logger
}

// Open inspects path with ffprobe and returns a decodable source.
func Open(ctx context.Context, ffmpegBinary, ffprobeBinary, path string, logger *slog.Logger) (*Source, error) {
	result, err := ffprobe.Inspect(ctx, ffprobeBinary, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	src := &Source{
		binary: ffmpegBinary,
		path:   path,
		probe:  result,
		video:  result.PrimaryVideo(),
		logger: logger,
	}
	if src.video == nil && !result.HasAudio() {
		return nil, fmt.Errorf("open %s: no decodable video or audio stream", path)
	}
	return src, nil
}

func (s *Source) Name() string      { return s.path }
func (s *Source) Duration() float64 { return s.probe.DurationSeconds() }
func (s *Source) HasVideo() bool    { return s.video != nil }
func (s *Source) HasAudio() bool    { return s.probe.HasAudio() }
func (s *Source) Close() error      { return nil }

// Frames decodes count frames across [in, out) at the source display
// resolution. ffmpeg applies rotation metadata, so a portrait phone clip
// comes out with width and height swapped. When the source ends early the
// last decoded frame is repeated.
func (s *Source) Frames(ctx context.Context, in, out float64, count int) ([]*image.RGBA, error) {
	if count <= 0 {
		return nil, nil
	}
	if s.video == nil {
		return nil, fmt.Errorf("decode %s: no video stream", s.path)
	}
	span := out - in
	if span <= 0 {
		return nil, fmt.Errorf("decode %s: empty span [%v,%v)", s.path, in, out)
	}
	rate := float64(count) / span
	args := []string{
		"-v", "error", "-nostdin",
		"-ss", formatSeconds(in),
		"-t", formatSeconds(span),
		"-i", s.path,
		"-map", "0:" + strconv.Itoa(s.video.Index),
		"-vf", "fps=" + strconv.FormatFloat(rate, 'f', 6, 64),
		"-frames:v", strconv.Itoa(count),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	}
	s.logger.Debug("decoding frames", "path", s.path, "in", in, "out", out, "count", count, "rotation", s.video.Rotation())

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	w, h := s.video.DisplaySize()
	frames := make([]*image.RGBA, 0, count)
	for len(frames) < count {
		frame := image.NewRGBA(image.Rect(0, 0, w, h))
		if _, err := io.ReadFull(stdout, frame.Pix); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			_ = cmd.Wait()
			return nil, fmt.Errorf("read frames from %s: %w", s.path, err)
		}
		frames = append(frames, frame)
	}
	_, _ = io.Copy(io.Discard, stdout)
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", s.path, err, strings.TrimSpace(stderr.String()))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("decode %s: no frames in [%v,%v)", s.path, in, out)
	}
	for len(frames) < count {
		frames = append(frames, frames[len(frames)-1])
	}
	return frames, nil
}

// Audio decodes [in, out) as interleaved stereo float32, padded with
// silence when the source ends early.
func (s *Source) Audio(ctx context.Context, in, out float64, sampleRate int) (media.AudioBuffer, error) {
	want := media.SampleFrames(sampleRate, out-in)
	if !s.HasAudio() || want == 0 {
		return media.NewSilence(sampleRate, out-in), nil
	}
	args := []string{
		"-v", "error", "-nostdin",
		"-ss", formatSeconds(in),
		"-t", formatSeconds(out - in),
		"-i", s.path,
		"-vn", "-ac", strconv.Itoa(media.Channels), "-ar", strconv.Itoa(sampleRate),
		"-f", "f32le", "pipe:1",
	}
	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	raw, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return media.AudioBuffer{}, ctx.Err()
		}
		return media.AudioBuffer{}, fmt.Errorf("ffmpeg audio %s: %w: %s", s.path, err, strings.TrimSpace(stderr.String()))
	}
	samples := make([]float32, want*media.Channels)
	for i := range samples {
		o := i * 4
		if o+4 > len(raw) {
			break
		}
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[o : o+4]))
	}
	return media.AudioBuffer{SampleRate: sampleRate, Samples: samples}, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(math.Max(0, v), 'f', 6, 64)
}
