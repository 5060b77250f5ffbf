// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: audio/video stream properties including pixel format and frame rate
//   - Format: container-level metadata (duration, size, bitrate)
//
// Inspect runs ffprobe and returns the parsed Result; Parse decodes an already
// captured payload. ParseRate understands rational frame rates such as
// "30000/1001".
package ffprobe
