// Package signature verifies the HMAC Shopify attaches to redirects it sends
// back to the app.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Fields that carry a signature and are excluded from the signed message.
const (
	FieldHMAC      = "hmac"
	FieldSignature = "signature"
)

// componentEscaper turns url.QueryEscape output into encodeURIComponent
// form: spaces as %20 and !'()* left literal.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func escape(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}

// Canonicalize returns the message Shopify signs for a set of query
// parameters: signature fields removed, keys sorted by byte value, each pair
// percent-encoded as key=value and joined with '&'. Repeated keys keep their
// original value order.
func Canonicalize(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == FieldHMAC || k == FieldSignature {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		ek := escape(k)
		for _, v := range params[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(escape(v))
		}
	}
	return b.String()
}

// Sign returns the hex-encoded HMAC-SHA256 of message under secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is the hex HMAC-SHA256 of message under
// secret. The comparison is constant time over the hex bytes; a length
// mismatch is simply false.
func Verify(secret, message, provided string) bool {
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(provided))
}

// VerifyQuery canonicalizes params and checks them against the hmac
// parameter they carry.
func VerifyQuery(secret string, params url.Values) bool {
	provided := params.Get(FieldHMAC)
	if provided == "" {
		return false
	}
	return Verify(secret, Canonicalize(params), provided)
}
