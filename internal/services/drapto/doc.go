// Package drapto runs the optional AV1 finishing pass over a stitched
// render, either through the linked Drapto library or the drapto CLI.
//
// Both implementations satisfy Client and report typed ProgressUpdate
// values, so callers can log progress without knowing which one ran.
package drapto
