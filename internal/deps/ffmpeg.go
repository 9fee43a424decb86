package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// FFmpegRequirements lists the ffmpeg binaries the encoder and media opener use.
func FFmpegRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for decoding sources and encoding chunks",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for media inspection",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
	}
}

// CheckEncoder reports whether the ffmpeg binary was built with the named encoder.
func CheckEncoder(ctx context.Context, ffmpegBinary, codec string) Status {
	codec = strings.TrimSpace(codec)
	result := Status{
		Name:        "Encoder " + codec,
		Command:     ffmpegBinary,
		Description: "Codec used for rendered chunks",
	}
	if codec == "" {
		result.Detail = "codec not configured"
		return result
	}
	resolved, err := exec.LookPath(strings.TrimSpace(ffmpegBinary))
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", ffmpegBinary)
		return result
	}
	result.Command = resolved
	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := commandContext(probeCtx, resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		// " V....D libx264              libx264 H.264 ..."
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == codec {
			result.Available = true
			return result
		}
	}
	result.Detail = fmt.Sprintf("ffmpeg built without %s", codec)
	return result
}

// CheckFFmpegForDrapto reports the FFmpeg binary Drapto will execute.
//
// Drapto prefers an ffmpeg binary next to its own executable and falls back
// to "ffmpeg" from PATH.
func CheckFFmpegForDrapto(draptoCommand string) Status {
	result := Status{
		Name:        "FFmpeg (Drapto)",
		Description: "Used by Drapto when finishing renders",
		Optional:    true,
	}

	if draptoBinary := strings.TrimSpace(draptoCommand); draptoBinary != "" {
		if resolved, err := exec.LookPath(draptoBinary); err == nil {
			candidate := sidecarFFmpeg(resolved)
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if ffmpegPath, err := exec.LookPath("ffmpeg"); err == nil {
		result.Command = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = "ffmpeg"
	result.Detail = `binary "ffmpeg" not found`
	return result
}

func sidecarFFmpeg(draptoPath string) string {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(draptoPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
