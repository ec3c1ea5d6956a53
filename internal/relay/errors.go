package relay

import "errors"

// Sentinel errors classifying cycle failures by stage. Every error returned
// from a cycle wraps exactly one of these.
var (
	ErrFetch     = errors.New("fetch failed")
	ErrNormalize = errors.New("normalization failed")
	ErrPublish   = errors.New("publish failed")
)
