package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
)

// Canonicalize renders the signed form of a parameter set: empty values and
// the hash parameters dropped, keys ascending, keys and values query-escaped.
func Canonicalize(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		if k == paramSecureHash || k == paramSecureHashType || v.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v.Get(k)))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA512 of the canonical form.
func Sign(v url.Values, secret string) string {
	return hmacHex(Canonicalize(v), secret)
}

func hmacHex(data, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
