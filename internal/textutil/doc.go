// Package textutil provides text helpers shared by the extractor, the
// builder and the CLI: Unicode case folding, subtitle cleanup, artifact
// slugs, byte sizes.
package textutil
