// Package effects defines the capabilities the engine consumes for pixel
// work: EffectProvider (one per-frame filter), TransitionProvider (a
// boundary blend between a clip tail and the next clip head) and
// TextRenderer (subtitle drawing). Builtin and Transitions are the
// in-process implementations.
//
// Frames are *image.RGBA with premultiplied alpha. Providers never modify
// their inputs; every call returns freshly allocated frames.
package effects
