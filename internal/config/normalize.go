package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CachePath, err = expandPath(c.Paths.CachePath); err != nil {
		return fmt.Errorf("paths.cache_path: %w", err)
	}
	dirs := make([]string, 0, len(c.Paths.MediaDirs))
	for _, dir := range c.Paths.MediaDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("paths.media_dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Paths.MediaDirs = dirs
	if c.Styles.CatalogPath, err = expandPath(strings.TrimSpace(c.Styles.CatalogPath)); err != nil {
		return fmt.Errorf("styles.catalog_path: %w", err)
	}
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() error {
	if value, ok := os.LookupEnv("MONTAGE_WORKERS"); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("MONTAGE_WORKERS: %w", err)
		}
		c.Render.Workers = workers
	}
	if value, ok := os.LookupEnv("MONTAGE_MEMORY_MB"); ok && strings.TrimSpace(value) != "" {
		mb, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("MONTAGE_MEMORY_MB: %w", err)
		}
		c.Render.AvailableMemoryMB = mb
	}
	c.Render.Isolation = strings.ToLower(strings.TrimSpace(c.Render.Isolation))
	if c.Render.Isolation == "" {
		c.Render.Isolation = defaultIsolation
	}
	c.Render.PlaceholderColor = strings.TrimSpace(c.Render.PlaceholderColor)
	if c.Render.PlaceholderColor == "" {
		c.Render.PlaceholderColor = defaultPlaceholderColor
	}
	if c.Render.SampleRate == 0 {
		c.Render.SampleRate = defaultSampleRate
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpeg = strings.TrimSpace(c.Encoder.FFmpeg)
	if c.Encoder.FFmpeg == "" {
		c.Encoder.FFmpeg = "ffmpeg"
	}
	c.Encoder.Drapto = strings.TrimSpace(c.Encoder.Drapto)
	c.Encoder.FFprobe = strings.TrimSpace(c.Encoder.FFprobe)
	if c.Encoder.FFprobe == "" {
		c.Encoder.FFprobe = "ffprobe"
	}
	if strings.TrimSpace(c.Encoder.VideoCodec) == "" {
		c.Encoder.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Encoder.AudioCodec) == "" {
		c.Encoder.AudioCodec = defaultAudioCodec
	}
	if strings.TrimSpace(c.Encoder.Preset) == "" {
		c.Encoder.Preset = defaultPreset
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
