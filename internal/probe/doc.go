// Package probe reports the facts the reconciler needs about a media file:
// its duration, its audio format, and for video the codec profile that a
// re-encode must match to stay concatenation-compatible.
//
// Probing is a pure query built on internal/media/ffprobe. Missing or zero
// durations are hard failures (services.ErrProbeFailed); an unreadable video
// frame rate, codec, or pixel format falls back to defaults with a warning so
// a retime can still proceed.
package probe
