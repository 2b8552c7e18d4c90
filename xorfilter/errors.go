package xorfilter

import "errors"

// Public, comparable error values for Build and FromSerialized failures.
var (
	ErrEmptyInput         = errors.New("no items")
	ErrConstructionFailed = errors.New("construction failed")
	ErrHashesMismatch     = errors.New("h1 and h2 slices differ in length")
	ErrTooManyItems       = errors.New("too many items")
	ErrBadLength          = errors.New("filter length is not a multiple of the fingerprint width")
)
