package drapto

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures Drapto progress events.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
	ETA     time.Duration
	Speed   float64
	FPS     float64
	Warning string
}

// Client defines Drapto encoding behaviour.
type Client interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithPreset passes an SVT-AV1 preset to drapto. Zero keeps drapto's default.
func WithPreset(preset int) Option {
	return func(c *CLI) {
		c.preset = preset
	}
}

// CLI wraps the drapto command-line encoder.
type CLI struct {
	binary string
	preset int
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "drapto"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode launches drapto encode and returns the output path.
func (c *CLI) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	outputPath, err := outputFor(inputPath, outputDir)
	if err != nil {
		return "", err
	}

	args := []string{"encode", "--input", inputPath, "--output", strings.TrimSpace(outputDir), "--responsive", "--progress-json"}
	if c.preset > 0 {
		args = append(args, "--preset", strconv.Itoa(c.preset))
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start drapto: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var payload struct {
			Percent    float64 `json:"percent"`
			Stage      string  `json:"stage"`
			Message    string  `json:"message"`
			ETASeconds float64 `json:"eta_seconds"`
			Speed      float64 `json:"speed"`
			FPS        float64 `json:"fps"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			continue
		}
		if progress != nil {
			progress(ProgressUpdate{
				Percent: payload.Percent,
				Stage:   payload.Stage,
				Message: payload.Message,
				ETA:     time.Duration(payload.ETASeconds * float64(time.Second)),
				Speed:   payload.Speed,
				FPS:     payload.FPS,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return "", fmt.Errorf("read drapto output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("drapto encode failed: %w", err)
	}
	return outputPath, nil
}

func outputFor(inputPath, outputDir string) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(outputDir)
	if cleanOutputDir == "" {
		return "", errors.New("output directory required")
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(cleanOutputDir, stem+".mkv"), nil
}

var _ Client = (*CLI)(nil)
