// Package services defines shared utilities consumed by the compiler, the
// execution engine and the render orchestrator.
//
// Key responsibilities:
//   - Context helpers that stamp render IDs, chunk indexes, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that keep the failure
//     taxonomy (validation, missing resource, effect, encoding) intact as
//     errors cross package boundaries.
//   - Severity classification so callers can tell clip-local degradations
//     from failures that abort a chunk.
package services
