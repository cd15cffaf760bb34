// Package l6geometry turns the smoothed driving state and the frame's
// bucketed segments into driver guidance: the lateral offset and turning
// percentage while within a lane, the lane overlay polygon, and the turn
// direction hint while changing lanes.
//
// Edge lines are the arithmetic mean of each segment's own slope and
// intercept. This is deliberately not a regression fit; overlay and offset
// output depend on it.
package l6geometry
