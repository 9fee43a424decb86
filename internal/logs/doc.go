// Package logs tails the montage JSON log file with bounded memory.
//
// Tail returns the last N matching lines or everything after a byte offset,
// and can wait for new lines in follow mode. ForRender narrows the output to
// one render (and its chunks) by the render_id field.
package logs
