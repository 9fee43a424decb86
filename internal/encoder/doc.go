// Package encoder turns composed frame and audio streams into container
// files with the ffmpeg binary, stitches chunk artifacts in order, and
// optionally hands the stitched file to Drapto for an AV1 finishing pass.
package encoder
