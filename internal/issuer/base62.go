package issuer

import (
	"fmt"
	"strings"
)

// Base62 alphabet, fixed ordering: digits, then uppercase, then lowercase.
// Codes already persisted by earlier runs depend on this exact order.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// EncodeBase62 converts n to its base62 representation, most significant
// digit first, with no padding. Zero encodes as "0".
func EncodeBase62(n uint64) string {
	if n == 0 {
		return "0"
	}
	// 64-bit values never need more than 11 base62 digits
	buf := make([]byte, 0, 11)
	for n > 0 {
		buf = append(buf, base62Alphabet[n%62])
		n /= 62
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// DecodeBase62 is the inverse of EncodeBase62.
func DecodeBase62(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty base62 string")
	}
	var n uint64
	for _, c := range []byte(s) {
		idx := strings.IndexByte(base62Alphabet, c)
		if idx < 0 {
			return 0, fmt.Errorf("invalid base62 character %q", c)
		}
		n = n*62 + uint64(idx)
	}
	return n, nil
}

// CouponCode forms the persisted code for one serial number.
func CouponCode(unitLabel string, serial uint64) string {
	return unitLabel + "-" + EncodeBase62(serial)
}
