package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives a deterministic cache key from the given call
// arguments. The same arguments always produce the same key; a unit
// separator between parts keeps adjacent values from colliding
// ("ab","c" vs "a","bc").
func Fingerprint(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v\x1f", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
