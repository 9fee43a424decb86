// Package chunking bounds render memory by splitting long timelines into
// time-ranged sub-timelines.
//
// The footprint of a timeline is estimated as
//
//	2 × width × height × 3 bytes × duration × fps
//
// where the factor of two covers double buffering. When the estimate
// exceeds the configured fraction of available memory, the timeline is cut
// into chunks of available × 0.7 / per-second-cost seconds. Cuts land on
// frame boundaries, snap back to the latest clip boundary inside the chunk,
// and never fall inside a transition or audio fade window.
package chunking
