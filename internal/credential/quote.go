package credential

import (
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// Quote percent-encodes s for use inside a SAS token.
//
// ASCII letters, digits and the characters -_.!~*'() are left as-is; every
// other byte becomes %XX with upper-case hex. This is the encodeURIComponent
// set the service uses when it re-computes the signature.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

// Unquote reverses Quote. A '+' is kept literally.
func Unquote(s string) (string, error) {
	return url.PathUnescape(s)
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
