// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result; helper methods expose the
// primary video stream geometry, frame rate, audio presence and duration
// that the ffmpeg-backed media handle needs before decoding.
package ffprobe
