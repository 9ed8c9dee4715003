package conneg

import (
	"strings"
)

// Cache stores the outcome of negotiations so that repeated Accept headers are not
// parsed and ranked again. Values are opaque to the Cache.
type Cache interface {
	// Get returns the stored value for the key and a boolean indicating whether the
	// key was found in the cache.
	Get(string) ([]byte, bool)

	// Put stores the value with a key.
	Put(string, []byte)

	// Del removes the value associated with the key.
	Del(string)
}

// cacheKey returns the cache key for a negotiation between the offers (the canonical,
// comma joined available list) and the Accept header values. Header values are
// normalized so that formatting differences share an entry.
func cacheKey(offers string, accept []string) string {
	return offers + "|accept:" + normalize(strings.Join(accept, ","))
}

// normalize trims the value, collapses whitespace runs to a single space and removes
// the whitespace following a comma. Quoted strings are copied verbatim since their
// whitespace is significant.
func normalize(value string) string {
	value = strings.TrimSpace(value)

	var (
		norm      strings.Builder
		prevSpace bool
		afterSep  bool
		quoted    bool
		escaped   bool
	)

	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case !quoted && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			prevSpace = true
			continue
		}

		if prevSpace && !afterSep && c != ',' {
			norm.WriteByte(' ')
		}
		norm.WriteByte(c)
		prevSpace = false
		afterSep = !quoted && c == ','
	}

	return norm.String()
}
