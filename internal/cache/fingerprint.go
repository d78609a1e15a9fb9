package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"stockdbv1/internal/indicator"
	"stockdbv1/internal/model"
)

// Fingerprint derives the cache key for one indicator calculation. The
// key covers everything that changes the output: symbol, indicator name,
// canonical parameters, and the requested date range. Parameter maps
// with the same values always canonicalize identically, so logically
// equal requests share a key.
func Fingerprint(symbol, name string, params indicator.Params, r model.DateRange) string {
	h := sha256.New()
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(params.Canonical()))
	h.Write([]byte{0})
	h.Write([]byte(r.String()))
	return hex.EncodeToString(h.Sum(nil))
}
