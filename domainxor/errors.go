package domainxor

import "fmt"

// Public, comparable error values.
var (
	ErrMissingArtifact  = fmt.Errorf("missing required artifact")
	ErrChecksumMismatch = fmt.Errorf("artifact checksum mismatch")
	ErrManifest         = fmt.Errorf("incompatible manifest")
	ErrNoSuffixes       = fmt.Errorf("no public suffixes")
	ErrCriticalBlocked  = fmt.Errorf("critical domains remain blocked")
	ErrNilEngine        = fmt.Errorf("nil engine")
)
