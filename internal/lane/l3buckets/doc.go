// Package l3buckets sorts one frame's raw line segments into lane-marking
// buckets against the region of interest, and smooths the count of long
// near-horizontal segments into a give-way warning.
package l3buckets
