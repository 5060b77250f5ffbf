package probe

import (
	"context"

	"dubsync/internal/media/ffprobe"
)

// inspect is the ffprobe function used by the package.
// It is a package-level variable so tests can override it.
var inspect = ffprobe.Inspect

// SetInspectForTests overrides the ffprobe runner during tests.
func SetInspectForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := inspect
	inspect = fn
	return func() {
		inspect = previous
	}
}
