package main

import (
	"fmt"

	"github.com/starius/domainxor/domainhash"
)

func main() {
	inputs := []string{
		"", "a", "com", "net", "co.uk", "example.co.uk", "ads.example.com",
		"tracker.net", "sub.tracker.net", "doubleclick.net", "xn--puny", "12345",
	}
	for _, s := range inputs {
		h1, h2 := domainhash.Hash(s)
		fmt.Printf("%q: {0x%08x, 0x%08x}, // fp=0x%04x\n", s, h1, h2, domainhash.Fingerprint(h1, h2))
	}
}
