package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeFFmpeg answers probes, drains stdin and writes its arguments to the
// output file (the last argument).
const fakeFFmpeg = `#!/bin/sh
case "$2" in
  -version) echo "ffmpeg version test"; exit 0 ;;
  -encoders) printf ' V....D libx264  H.264\n A....D aac  AAC\n'; exit 0 ;;
esac
out=""
for a; do out="$a"; done
cat > /dev/null
printf '%s\n' "$*" > "$out"
`

const harborTimeline = `{
  "version": "1.0",
  "metadata": {"title": "Harbor Walk"},
  "timeline": {
    "duration": 2,
    "fps": 5,
    "resolution": {"width": 32, "height": 18},
    "tracks": [
      {"type": "video", "name": "main", "clips": [
        {"start": 0, "end": 2, "source": "missing.mp4", "filters": []}
      ]}
    ]
  }
}
`

type cliTestEnv struct {
	baseDir    string
	configPath string
	outputDir  string
	workDir    string
	logDir     string
	mediaDir   string
	metrics    string
	ffmpeg     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs unavailable")
	}

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("MONTAGE_WORKERS", "")
	t.Setenv("MONTAGE_MEMORY_MB", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "montage.toml"),
		outputDir:  filepath.Join(base, "out"),
		workDir:    filepath.Join(base, "work"),
		logDir:     filepath.Join(base, "logs"),
		mediaDir:   filepath.Join(base, "media"),
		metrics:    filepath.Join(base, "metrics", "montage.prom"),
		ffmpeg:     filepath.Join(base, "bin", "ffmpeg"),
	}
	for _, dir := range []string{env.mediaDir, filepath.Dir(env.ffmpeg)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(env.ffmpeg, []byte(fakeFFmpeg), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
work_dir = %q
log_dir = %q
media_dirs = [%q]
cache_path = %q

[render]
workers = 1
isolation = "inprocess"
available_memory_mb = 4096

[encoder]
ffmpeg = %q
ffprobe = %q

[logging]
level = "error"

[metrics]
textfile = %q
`,
		env.outputDir, env.workDir, env.logDir, env.mediaDir,
		filepath.Join(env.baseDir, "cache", "resolver.json"),
		env.ffmpeg, env.ffmpeg, env.metrics,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
