// Package render drives a full timeline render: it plans chunks, renders
// them through a bounded worker pool either in-process or in isolated
// worker processes, stitches the artifacts in chunk order, and produces
// the render report.
package render
