// Package media defines the decodable-source contract the engine renders
// from (Handle), interleaved stereo audio buffers, and the in-process
// handles: flat color sources (placeholders included) and still images.
//
// Subpackages ffprobe and ffmpeg provide inspection and decoding of
// container files through the external ffmpeg tools.
package media
