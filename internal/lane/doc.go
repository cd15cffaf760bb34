// Package lane is the root of the lane-marking pipeline.
//
// The pipeline is split into layered packages, each depending only on the
// layers below it:
//
//	l1segments  frame data model (line segments, exclusion boxes) and wire codec
//	l2roi       immutable region-of-interest geometry
//	rolling     fixed-window majority-vote smoothing
//	l3buckets   per-frame line bucketing (left / middle / right / horizontal)
//	l4linetype  smoothed none / dashed / solid classification for display
//	l5state     smoothed 5-state driving-state machine
//	l6geometry  per-state lateral offset, turning guidance and lane overlay
//	pipeline    the per-frame Detector that runs the layers in order
package lane
