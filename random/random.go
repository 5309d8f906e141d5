package random

import (
	"crypto/rand"
)

// Bytes returns n bytes from the system CSPRNG. It panics if the system
// source fails.
func Bytes(n int) []byte {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}

	return b
}
