package common

import "github.com/awnumar/memguard"

// Wipe zeroes every given buffer. Nil buffers are skipped.
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		if b != nil {
			memguard.WipeBytes(b)
		}
	}
}

// CloneBytes returns an independent copy of b
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
