// Package timeline decides how a set of produced clips is laid onto the
// subtitle time axis.
//
// Adjust compares the natural layout (every clip at its own length, preceded
// by its original gap) with the target total and picks one of three
// strategies:
//
//   - simple: the difference is within tolerance; gaps absorb the residual.
//   - compress: the layout is too long; gaps shrink first, then every clip
//     above the MinClip floor is sped up by one uniform ratio.
//   - expand: the layout is too short; gaps grow, clips are never slowed.
//
// All arithmetic runs in whole milliseconds so sums are exact and the last
// slot ends on the target. Each resulting slot carries its Plan as data; the
// transform package executes it.
package timeline
