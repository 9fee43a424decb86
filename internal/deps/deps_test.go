package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, executableName(name))
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present", "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("blank command detail = %q", results[2].Detail)
	}
}

func TestCheckBinariesCapturesVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg", `echo ""; echo "ffmpeg version 7.1 Copyright"; echo "built with gcc"`)

	results := CheckBinaries(context.Background(), FFmpegRequirements(ffmpeg, "clearly-not-present-ffprobe"))
	if got := results[0].Version; got != "ffmpeg version 7.1 Copyright" {
		t.Fatalf("version = %q", got)
	}
	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "FFprobe" {
		t.Fatalf("missing = %#v", missing)
	}
}

func TestMissingSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "a", Available: true},
		{Name: "b", Optional: true},
		{Name: "c"},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "c" {
		t.Fatalf("missing = %#v", missing)
	}
}

func TestCheckEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	binDir := t.TempDir()
	listing := `cat <<'LIST'
Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC
 A....D aac                  AAC (Advanced Audio Coding)
LIST`
	ffmpeg := writeStub(t, binDir, "ffmpeg", listing)

	if status := CheckEncoder(context.Background(), ffmpeg, "libx264"); !status.Available {
		t.Fatalf("expected libx264 available, got %#v", status)
	}
	status := CheckEncoder(context.Background(), ffmpeg, "libx265")
	if status.Available {
		t.Fatal("expected libx265 to be unavailable")
	}
	if !strings.Contains(status.Detail, "libx265") {
		t.Fatalf("detail = %q", status.Detail)
	}
}

func TestCheckFFmpegForDraptoSidecar(t *testing.T) {
	tmp := t.TempDir()
	draptoPath := writeStub(t, tmp, "drapto", "exit 0")
	ffmpegPath := writeStub(t, tmp, "ffmpeg", "exit 0")

	status := CheckFFmpegForDrapto(draptoPath)
	if !status.Available {
		t.Fatalf("expected ffmpeg sidecar to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected ffmpeg command %q, got %q", ffmpegPath, status.Command)
	}
}

func TestCheckFFmpegForDraptoPathFallback(t *testing.T) {
	tmp := t.TempDir()
	draptoPath := writeStub(t, tmp, "drapto", "exit 0")

	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffmpegPath := writeStub(t, binDir, "ffmpeg", "exit 0")
	newPath := binDir
	if oldPath := os.Getenv("PATH"); oldPath != "" {
		newPath = binDir + string(os.PathListSeparator) + oldPath
	}
	t.Setenv("PATH", newPath)

	status := CheckFFmpegForDrapto(draptoPath)
	if !status.Available {
		t.Fatalf("expected ffmpeg fallback to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected ffmpeg command %q, got %q", ffmpegPath, status.Command)
	}
}

func TestCheckFFmpegForDraptoNotFound(t *testing.T) {
	tmp := t.TempDir()
	draptoPath := filepath.Join(tmp, executableName("drapto"))
	t.Setenv("PATH", "")
	status := CheckFFmpegForDrapto(draptoPath)
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
