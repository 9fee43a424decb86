// Package timeline holds the canonical multi-track Timeline model, its JSON
// document codec, structural validation, and the optimizer that repairs
// overlaps and infers boundary transitions.
//
// A Timeline is built once (by the builder or by decoding a hand-authored
// document), rewritten by Optimize into a new value, and treated as
// immutable from then on. Nothing in this package mutates its input.
package timeline
