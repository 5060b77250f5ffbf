// Package transform applies a timeline.Plan to one media segment with ffmpeg.
//
// Audio segments are rendered to canonical 16-bit PCM WAV. Rate changes use
// rubberband=tempo=R or an atempo chain; Hold plans pad with silence or trim.
// Video segments are retimed with setpts and an fps filter whose target rate
// is computed from the probed source rate, then re-encoded with an encoder of
// the same codec family and pixel format so the result stays compatible with
// its siblings.
//
// Backends are tried in order and the first success wins. Every output is
// written to a .part file and renamed into place, then re-probed; a result
// outside the correction tolerance gets exactly one trim/pad pass.
package transform
