package psltrie

import "fmt"

// Public, comparable error values for Build and FromSerialized failures.
var (
	ErrEmptyInput   = fmt.Errorf("no suffixes")
	ErrEmptyLabel   = fmt.Errorf("suffix has an empty label")
	ErrTruncated    = fmt.Errorf("trie buffer truncated")
	ErrBadAlignment = fmt.Errorf("trie string table is not 4-byte aligned")
	ErrCorrupt      = fmt.Errorf("trie structure is corrupt")
)
