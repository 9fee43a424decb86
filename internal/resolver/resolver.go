package resolver

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/media/ffmpeg"
	"montage/internal/services"
	"montage/internal/timeline"
)

// ColorPrefix introduces inline flat-color sources.
const ColorPrefix = "color:"

// colorFrameSize is the edge of a color source frame; the engine scales it
// to fill the canvas.
const colorFrameSize = 16

// MediaExtensions are tried in order when a source names no extension.
var MediaExtensions = []string{
	".mp4", ".mov", ".mkv", ".webm", ".m4v",
	".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp", ".tif", ".tiff",
	".mp3", ".wav", ".flac", ".m4a", ".aac", ".ogg", ".opus",
}

// Resolver maps a logical source to an open handle. A miss returns an
// error matching services.ErrResourceMissing.
type Resolver interface {
	Resolve(ctx context.Context, source string) (media.Handle, error)
}

// Opener opens a located file.
type Opener func(ctx context.Context, path string) (media.Handle, error)

// FFmpegOpener decodes stills in process and everything else through ffmpeg.
func FFmpegOpener(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) Opener {
	return func(ctx context.Context, path string) (media.Handle, error) {
		if media.IsStillPath(path) {
			return media.OpenStill(path)
		}
		return ffmpeg.Open(ctx, ffmpegBinary, ffprobeBinary, path, logger)
	}
}

// StillOpener opens only still images.
func StillOpener(_ context.Context, path string) (media.Handle, error) {
	if !media.IsStillPath(path) {
		return nil, fmt.Errorf("%s: not a still image", path)
	}
	return media.OpenStill(path)
}

// Option configures a FileResolver.
type Option func(*FileResolver)

// WithCache persists located paths across processes.
func WithCache(cache *Cache) Option {
	return func(r *FileResolver) { r.cache = cache }
}

// WithOpener replaces the default still-only opener.
func WithOpener(open Opener) Option {
	return func(r *FileResolver) {
		if open != nil {
			r.open = open
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *FileResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// FileResolver locates sources beneath a list of media directories.
type FileResolver struct {
	roots  []string
	scope  string
	open   Opener
	cache  *Cache
	logger *slog.Logger

	mu      sync.Mutex
	located map[string]string
}

// NewFileResolver searches roots in order.
func NewFileResolver(roots []string, opts ...Option) *FileResolver {
	r := &FileResolver{
		open:    StillOpener,
		logger:  logging.NewNop(),
		located: make(map[string]string),
	}
	for _, root := range roots {
		if root = strings.TrimSpace(root); root != "" {
			r.roots = append(r.roots, root)
		}
	}
	r.scope = Scope(r.roots)
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "resolver")
	return r
}

// Resolve opens source. Unknown and undecodable sources both report
// services.ErrResourceMissing.
func (r *FileResolver) Resolve(ctx context.Context, source string) (media.Handle, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.ErrResourceMissing, "resolve", "", "clip has no source", nil)
	}
	if strings.HasPrefix(source, ColorPrefix) {
		return colorHandle(source)
	}

	path, err := r.Locate(source)
	if err != nil {
		return nil, err
	}
	handle, err := r.open(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.forget(source)
		return nil, services.Wrap(services.ErrResourceMissing, "resolve", source, "open "+path, err)
	}
	return handle, nil
}

// Locate returns the file path for source. Cached locations are only
// reused by resolvers searching the same media directories in the same
// order.
func (r *FileResolver) Locate(source string) (string, error) {
	r.mu.Lock()
	path, ok := r.located[source]
	r.mu.Unlock()
	if ok {
		return path, nil
	}

	if r.cache != nil {
		if entry, ok := r.cache.Lookup(r.scope, source); ok {
			r.remember(source, entry.Path)
			return entry.Path, nil
		}
	}

	path, err := r.search(source)
	if err != nil {
		return "", err
	}
	r.remember(source, path)
	if r.cache != nil {
		if _, err := r.cache.Store(r.scope, source, path); err != nil {
			r.logger.Debug("resolver cache store failed", logging.String("source", source), logging.Error(err))
		}
	}
	return path, nil
}

func (r *FileResolver) search(source string) (string, error) {
	for _, candidate := range r.candidates(source) {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("skipping unreadable candidate", logging.String("path", candidate), logging.Error(err))
		}
	}
	return "", services.Wrap(services.ErrResourceMissing, "resolve", source, "not found in media directories", nil)
}

func (r *FileResolver) candidates(source string) []string {
	var bases []string
	if filepath.IsAbs(source) {
		bases = []string{filepath.Clean(source)}
	} else {
		clean := filepath.Clean(source)
		if strings.HasPrefix(clean, "..") {
			return nil
		}
		for _, root := range r.roots {
			bases = append(bases, filepath.Join(root, clean))
		}
	}
	out := make([]string, 0, len(bases)*(len(MediaExtensions)+1))
	for _, base := range bases {
		out = append(out, base)
		if filepath.Ext(base) != "" {
			continue
		}
		for _, ext := range MediaExtensions {
			out = append(out, base+ext)
		}
	}
	return out
}

func (r *FileResolver) remember(source, path string) {
	r.mu.Lock()
	r.located[source] = path
	r.mu.Unlock()
}

func (r *FileResolver) forget(source string) {
	r.mu.Lock()
	delete(r.located, source)
	r.mu.Unlock()
}

func colorHandle(source string) (media.Handle, error) {
	rgb, err := timeline.ParseHexColor(strings.TrimPrefix(source, ColorPrefix))
	if err != nil {
		return nil, services.Wrap(services.ErrResourceMissing, "resolve", source, "bad color source", err)
	}
	c := color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
	return media.NewColorSource(source, c, colorFrameSize, colorFrameSize), nil
}
