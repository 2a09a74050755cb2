// Package natkey provides keys for records that are identified by something
// other than their store-assigned id.
package natkey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// LocalPrefix marks identifiers synthesized on the client for records the
// store has not confirmed.
const LocalPrefix = "local_"

// ConstraintPK computes a hash-distributed partition key for a natural-key
// constraint. fields and values are paired by position; order matters.
func ConstraintPK(collection string, fields, values []string) string {
	var b strings.Builder
	b.WriteString(collection)
	for i, f := range fields {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		b.WriteByte(0)
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(v)
	}
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}

// LocalID returns a new locally-unique identifier.
func LocalID() string {
	return LocalPrefix + uuid.NewString()
}

// IsLocal reports whether id was synthesized by LocalID, or is empty.
func IsLocal(id string) bool {
	return id == "" || strings.HasPrefix(id, LocalPrefix)
}

// ClientKey returns a new client-generated idempotency key.
func ClientKey() string {
	return uuid.NewString()
}
