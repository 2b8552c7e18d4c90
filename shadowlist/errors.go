package shadowlist

import "fmt"

var (
	ErrBadLength = fmt.Errorf("whitelist length is not a multiple of 4")
	ErrUnsorted  = fmt.Errorf("whitelist is not strictly ascending")
)
