// Package textutil turns free-form names, such as subtitle file stems, into
// safe filesystem path segments.
package textutil
