package conneg

import "strings"

type charClass int

const (
	cTokenOK charClass = iota
	cQuotedOK
	cUnsafe
)

var (
	byteClass  [256]charClass
	isNameChar [256]bool
)

func init() {
	for i := 0; i < 256; i++ {
		b := byte(i)
		switch {
		case (b < 0x20 && b != '\t') || b == 0x7F:
			byteClass[b] = cUnsafe
		case (b >= '0' && b <= '9') ||
			(b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') ||
			strings.IndexByte("!#$%&'*+-.^_`|~", b) != -1:
			byteClass[b] = cTokenOK
		default:
			byteClass[b] = cQuotedOK
		}
	}

	// Type and subtype names are narrower than RFC 7230 tokens.
	for _, c := range "0123456789" +
		"abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"-.+" {
		isNameChar[c] = true
	}
}

// isToken reports whether s is a non-empty RFC 7230 token.
func isToken(s string) bool {
	for i := 0; i < len(s); i++ {
		if byteClass[s[i]] != cTokenOK {
			return false
		}
	}
	return s != ""
}

// isName reports whether s is usable as a type or subtype: either the
// wildcard or a run of alphanumerics, '-', '.' and '+'.
func isName(s string) bool {
	if s == wildcard {
		return true
	}
	for i := 0; i < len(s); i++ {
		if !isNameChar[s[i]] {
			return false
		}
	}
	return s != ""
}

// isRepresentable reports whether s can be carried in a quoted-string.
func isRepresentable(s string) bool {
	for i := 0; i < len(s); i++ {
		if byteClass[s[i]] == cUnsafe {
			return false
		}
	}
	return true
}

// writeValue writes s as a token when possible, otherwise as a quoted-string
// with '"' and '\' escaped.
func writeValue(b *strings.Builder, s string) {
	if isToken(s) {
		b.WriteString(s)
		return
	}
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
}
