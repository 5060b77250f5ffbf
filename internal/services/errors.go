package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")

	// ErrProbeFailed marks unreadable media metadata. Callers fall back to
	// defaults and keep going.
	ErrProbeFailed = errors.New("probe failed")
	// ErrTransformFailed marks a toolchain invocation that failed or timed out.
	ErrTransformFailed = errors.New("transform failed")
	// ErrDurationMismatch marks a segment or track still outside tolerance
	// after correction.
	ErrDurationMismatch = errors.New("duration mismatch after correction")
	// ErrAssemblyFailed marks a concatenation I/O failure. Always fatal.
	ErrAssemblyFailed = errors.New("assembly failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort the whole job rather than degrade a
// single segment or the verification status.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrProbeFailed), errors.Is(err, ErrDurationMismatch):
		return false
	case errors.Is(err, ErrTransformFailed):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
