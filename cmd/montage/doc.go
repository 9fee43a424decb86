// Package main hosts the montage CLI entrypoint and command graph.
//
// The Cobra command tree turns a natural-language brief into a timeline
// (compile), repairs and inspects timelines (optimize, validate, plan),
// renders them to a single video file (render) and keeps a local history of
// past renders (history). Operators check the environment with deps and read
// the JSON log with logs. A hidden worker command renders one chunk when
// process isolation is enabled.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here through commands or flags.
package main
