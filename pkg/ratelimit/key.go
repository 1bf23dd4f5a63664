package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Keys longer than this are hashed before they reach the store.
const maxKeyLength = 64

// KeyFunc names the bucket a request is counted in. "" means do not limit.
type KeyFunc func(*http.Request) string

// Composite joins the non-empty parts with ":". Results over 64 bytes are
// replaced by the first 16 bytes of their SHA-256, hex encoded.
func Composite(parts ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		var b strings.Builder
		for _, fn := range parts {
			p := fn(r)
			if p == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(':')
			}
			b.WriteString(p)
		}
		if b.Len() <= maxKeyLength {
			return b.String()
		}
		sum := sha256.Sum256([]byte(b.String()))
		return hex.EncodeToString(sum[:16])
	}
}

// Static is a fixed namespace, such as the route group being limited.
func Static(key string) KeyFunc {
	return func(*http.Request) string { return key }
}

func Header(name string) KeyFunc {
	return func(r *http.Request) string { return r.Header.Get(name) }
}
