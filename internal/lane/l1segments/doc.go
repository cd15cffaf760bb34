// Package l1segments owns the per-frame input data model: raw line segments
// produced by an upstream line extractor and exclusion boxes produced by an
// upstream object detector. It also owns the wire codec used by the UDP feed
// and pcap replay.
package l1segments
