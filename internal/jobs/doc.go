// Package jobs records render history in SQLite.
//
// Each render gets one row keyed by its render id, holding the timeline
// title and content hash, the final status, the report as JSON and a
// zstd-compressed snapshot of the timeline that was rendered. Writes retry
// on SQLITE_BUSY so concurrent CLI invocations can share the database.
package jobs
