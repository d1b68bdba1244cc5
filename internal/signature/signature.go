// Package signature implements the keyed-digest engine shared by all
// provider gateways: canonicalize a field set into a deterministic
// message and compute an HMAC-SHA256 over it. Only the output encoding
// varies per provider.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
)

// Encoding selects the digest output encoding of a provider.
type Encoding int

const (
	// HexUpper renders the digest as uppercase hexadecimal.
	HexUpper Encoding = iota
	// Base64 renders the digest in standard base64.
	Base64
)

// Sign computes the keyed digest of canonical under secret. Pure and
// deterministic: identical inputs always yield the identical string.
// The secret is used as raw bytes; hex decoding of configured secrets
// is the caller's responsibility.
func Sign(secret []byte, canonical string, enc Encoding) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	sum := mac.Sum(nil)

	switch enc {
	case Base64:
		return base64.StdEncoding.EncodeToString(sum)
	default:
		return strings.ToUpper(hex.EncodeToString(sum))
	}
}

// Fields is an unordered set of named values to be signed.
type Fields map[string]string

// Canonical renders the fields in the universal canonical form: names
// sorted ascending, joined as name=value pairs with '&', no trailing
// separator, no escaping.
func (f Fields) Canonical() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(f[name])
	}
	return b.String()
}

// Verify recomputes the digest and compares it to provided in constant
// time, accepting either supported encoding's casing rules as-is.
func Verify(secret []byte, canonical, provided string, enc Encoding) bool {
	return hmac.Equal([]byte(Sign(secret, canonical, enc)), []byte(provided))
}
