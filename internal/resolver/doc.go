// Package resolver maps logical clip sources to decodable media handles.
//
// A FileResolver searches the configured media directories for a file
// whose name matches the source, with or without an extension. Sources of
// the form "color:#RRGGBB" resolve to flat color handles without touching
// the filesystem.
//
// # Caching
//
// Located paths are memoized per process behind a mutex. When a cache path
// is configured, locations are also persisted to a JSON file shared by all
// worker processes. Every read-modify-write of that file happens under a
// gofrs/flock lock next to it, which is the only cross-process
// synchronization point in a render. Entries are revalidated by size and
// modification time, falling back to a blake3 fingerprint of the file head.
package resolver
