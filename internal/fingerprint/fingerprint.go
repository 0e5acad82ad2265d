// Package fingerprint computes the attribute hash that detects schema drift
// between a submission and its entry's live attributes.
package fingerprint

import (
	"cmp"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"slices"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// Compute returns the hex SHA-256 digest of the attributes ordered by position.
// Only the relative order matters, so the slice order and gaps between
// positions do not change the result.
func Compute(attrs []domain.Attribute) string {
	ordered := slices.Clone(attrs)
	slices.SortStableFunc(ordered, func(a, b domain.Attribute) int {
		return cmp.Compare(a.Position, b.Position)
	})

	h := sha256.New()
	var lenBuf [8]byte
	for i, attr := range ordered {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(i))
		h.Write(lenBuf[:])
		writeField(h, attr.Name)
		writeField(h, attr.Type)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether attrs hash to want.
func Equal(attrs []domain.Attribute, want string) bool {
	return Compute(attrs) == want
}

// writeField length-prefixes s so that ("ab","c") and ("a","bc") differ.
func writeField(w io.Writer, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	_, _ = w.Write(lenBuf[:])
	_, _ = w.Write([]byte(s))
}
