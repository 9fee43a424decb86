package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"montage/internal/chunking"
	"montage/internal/config"
	"montage/internal/deps"
	"montage/internal/logging"
	"montage/internal/styles"
	"montage/internal/textutil"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckStyleCatalog verifies that the style catalog override parses.
func CheckStyleCatalog(path string) Result {
	const name = "Style catalog"
	catalog, err := styles.Load(path, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d styles)", path, len(catalog.Names()))}
}

// CheckMemory reports the memory budget chunk planning will use.
func CheckMemory(cfg *config.Config) Result {
	const name = "Memory budget"
	available := cfg.AvailableMemoryBytes()
	source := "configured"
	if available == 0 {
		detected, err := chunking.AvailableMemory()
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("detect available memory: %v", err)}
		}
		available = detected
		source = "detected"
	}
	if available == 0 {
		return Result{Name: name, Detail: "no available memory reported"}
	}
	budget := uint64(float64(available) * cfg.Render.MemoryFraction)
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s of %s %s", textutil.FormatBytes(budget), textutil.FormatBytes(available), source),
	}
}

// CheckSystemDeps evaluates the external binaries the render pipeline
// invokes for the given config. Both "montage deps" and RunAll use it.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(ctx, deps.FFmpegRequirements(cfg.Encoder.FFmpeg, cfg.Encoder.FFprobe))
	if statuses[0].Available {
		statuses = append(statuses,
			deps.CheckEncoder(ctx, cfg.Encoder.FFmpeg, cfg.Encoder.VideoCodec),
			deps.CheckEncoder(ctx, cfg.Encoder.FFmpeg, cfg.Encoder.AudioCodec),
		)
	}
	if cfg.Encoder.DraptoFinish {
		if cfg.Encoder.Drapto != "" {
			statuses = append(statuses, deps.CheckBinaries(ctx, []deps.Requirement{{
				Name:        "Drapto",
				Command:     cfg.Encoder.Drapto,
				Description: "Finishing pass for rendered output",
				VersionArgs: []string{"--version"},
			}})...)
		}
		statuses = append(statuses, deps.CheckFFmpegForDrapto(cfg.Encoder.Drapto))
	}
	return statuses
}
