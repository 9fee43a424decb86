// Package features turns a free-form editing brief into typed features: a
// total duration, sentence segments with optional time ranges and effect
// keywords, and global choices (rhythm, color theme, artistic style,
// transition, background music).
//
// Every global table is a closed, ordered list matched first-to-last; the
// first entry whose keyword occurs wins. Transition keywords are matched
// before the filter vocabulary and their spans hide the text they cover, so
// "flip transition" selects the flip transition rather than the rotate
// filter and "crossfade" does not also add a fade filter.
//
// Extract never fails on ambiguous input; it falls back to documented
// defaults. Only empty, too-short or letterless input is rejected.
package features
