// Package assemble concatenates transformed segments into the final track.
//
// Segments are laid out strictly in slot order. Gaps between slots and slots
// without a usable segment become canonical PCM silence of the exact length,
// so the concat demuxer can join every piece with -c copy. The result is
// re-probed and corrected at most once at the tail before a Verification
// record is produced. Mux combines the track with a stretched video stream,
// replacing, mixing with, or removing the source audio.
package assemble
