package encoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"montage/internal/engine"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/services"
)

const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultCRF        = 20
	DefaultPreset     = "medium"
	DefaultExtension  = ".mp4"
)

// Settings selects codecs and quality for the sink. A negative CRF selects
// DefaultCRF.
type Settings struct {
	VideoCodec string
	AudioCodec string
	CRF        int
	Preset     string
}

func (s Settings) withDefaults() Settings {
	if strings.TrimSpace(s.VideoCodec) == "" {
		s.VideoCodec = DefaultVideoCodec
	}
	if strings.TrimSpace(s.AudioCodec) == "" {
		s.AudioCodec = DefaultAudioCodec
	}
	if s.CRF < 0 {
		s.CRF = DefaultCRF
	}
	return s
}

// FFmpegSink encodes frames piped as raw RGBA plus an f32le audio track
// into one file per Write.
type FFmpegSink struct {
	exec     *Executor
	settings Settings
	dir      string
	logger   *slog.Logger
}

// NewFFmpegSink writes artifacts into dir.
func NewFFmpegSink(exec *Executor, dir string, settings Settings, logger *slog.Logger) *FFmpegSink {
	if exec == nil {
		exec = NewExecutor("")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpegSink{
		exec:     exec,
		settings: settings.withDefaults(),
		dir:      dir,
		logger:   logging.NewComponentLogger(logger, "encoder"),
	}
}

// Write implements engine.Sink.
func (s *FFmpegSink) Write(ctx context.Context, frames []*image.RGBA, audio media.AudioBuffer, format engine.Format) (string, error) {
	if len(frames) == 0 {
		return "", services.Wrap(services.ErrEncoding, "encode", "write", "no frames to encode", nil)
	}
	if format.FPS <= 0 || format.Width <= 0 || format.Height <= 0 {
		return "", services.Wrap(services.ErrEncoding, "encode", "write", fmt.Sprintf("invalid format %+v", format), nil)
	}
	for i, frame := range frames {
		if frame == nil || frame.Rect.Dx() != format.Width || frame.Rect.Dy() != format.Height {
			return "", services.Wrap(services.ErrEncoding, "encode", "write", fmt.Sprintf("frame %d does not match %dx%d", i, format.Width, format.Height), nil)
		}
	}
	rate := format.SampleRate
	if rate <= 0 {
		rate = audio.SampleRate
	}
	if rate <= 0 {
		rate = engine.DefaultSampleRate
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrEncoding, "encode", "prepare", "create output directory", err)
	}
	output := filepath.Join(s.dir, artifactName(ctx))
	seconds := float64(len(frames)) / format.FPS
	audioPath, err := s.writeAudio(audio, media.SampleFrames(rate, seconds))
	if err != nil {
		return "", services.Wrap(services.ErrEncoding, "encode", "prepare", "write audio track", err)
	}
	defer os.Remove(audioPath)

	args := []string{
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", format.Width, format.Height),
		"-r", strconv.FormatFloat(format.FPS, 'f', -1, 64),
		"-i", "pipe:0",
		"-f", "f32le", "-ar", strconv.Itoa(rate), "-ac", strconv.Itoa(media.Channels),
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", s.settings.VideoCodec,
		"-crf", strconv.Itoa(s.settings.CRF),
	}
	if s.settings.Preset != "" {
		args = append(args, "-preset", s.settings.Preset)
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", s.settings.AudioCodec,
		"-movflags", "+faststart",
		output,
	)

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("encoding artifact",
		logging.String("output", output),
		logging.Int("frames", len(frames)),
		logging.Float64("seconds", seconds),
	)
	feed := func(w io.Writer) error { return writeFrames(w, frames) }
	if err := s.exec.Run(ctx, args, feed); err != nil {
		_ = os.Remove(output)
		return "", services.Wrap(services.ErrEncoding, "encode", "ffmpeg", output, err)
	}
	return output, nil
}

func (s *FFmpegSink) writeAudio(audio media.AudioBuffer, want int) (string, error) {
	file, err := os.CreateTemp(s.dir, "montage-audio-*.f32")
	if err != nil {
		return "", err
	}
	buf := bufio.NewWriter(file)
	samples := audio.Samples
	if len(samples) > want*media.Channels {
		samples = samples[:want*media.Channels]
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if pad := want*media.Channels - len(samples); pad > 0 {
		if err := binary.Write(buf, binary.LittleEndian, make([]float32, pad)); err != nil {
			file.Close()
			os.Remove(file.Name())
			return "", err
		}
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

func writeFrames(w io.Writer, frames []*image.RGBA) error {
	for _, frame := range frames {
		width := frame.Rect.Dx() * 4
		if frame.Stride == width {
			if _, err := w.Write(frame.Pix[:width*frame.Rect.Dy()]); err != nil {
				return err
			}
			continue
		}
		for y := 0; y < frame.Rect.Dy(); y++ {
			row := frame.Pix[y*frame.Stride : y*frame.Stride+width]
			if _, err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func artifactName(ctx context.Context) string {
	prefix := "render"
	if id, ok := services.RenderIDFromContext(ctx); ok {
		prefix = id
	}
	if index, ok := services.ChunkFromContext(ctx); ok {
		return fmt.Sprintf("%s-chunk-%04d%s", prefix, index, DefaultExtension)
	}
	return prefix + "-" + uuid.NewString()[:8] + DefaultExtension
}

var _ engine.Sink = (*FFmpegSink)(nil)
