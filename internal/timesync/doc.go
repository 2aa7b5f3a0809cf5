// Package timesync pairs two independently sampled time series by nearest
// timestamp.
//
// A SampleBuffer holds one stream (typically ground truth) loaded in full
// from a recording. A Synchronizer answers "which buffered sample is closest
// to time t?" for each sample of the other stream, returning no match when t
// lies outside the buffer's time range or the nearest sample is further than
// the configured tolerance.
//
// Two lookup strategies exist. StrategyBinarySearch always returns the global
// nearest sample. StrategyWindowedCursor reproduces the historical sliding
// window search: it only inspects Window samples either side of the last
// match, so it requires non-decreasing query times and a nearest sample that
// is still inside the window. Violating that precondition yields a
// non-global match or a spurious miss.
package timesync
