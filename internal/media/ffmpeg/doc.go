// Package ffmpeg holds the subprocess runner and argument builders shared by
// the transform and assemble packages.
//
// Filter parameters are always rendered as literal decimal numbers
// (FormatNumber); ffmpeg never sees symbolic expressions for rates.
package ffmpeg
