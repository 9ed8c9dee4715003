package conneg

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Preference is one media range from an Accept header: the range itself, the quality
// weight the client assigned to it and the position of the element in the header.
// A Quality of 0 means the client rejects the range. Create preferences with
// ParseAccept or NewPreference; the zero value has quality 0.
type Preference struct {
	MediaType MediaType
	Quality   float64
	Index     int
}

// NewPreference weights a media range with the given quality, which must be in [0, 1].
// The quality is rounded to the three decimals an Accept header can carry; a positive
// quality that would round to 0 is an error since it would read as a rejection.
func NewPreference(mt MediaType, quality float64) (Preference, error) {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return Preference{}, malformed("quality %v outside of [0, 1]", quality)
	}

	rounded := math.Round(quality*1000) / 1000
	if rounded == 0 && quality > 0 {
		return Preference{}, malformed("quality %v is below the smallest qvalue 0.001", quality)
	}
	return Preference{MediaType: mt, Quality: rounded}, nil
}

// String returns the media range followed by its quality if it is not 1.
func (p Preference) String() string {
	if p.Quality == 1 {
		return p.MediaType.String()
	}
	return p.MediaType.String() + "; q=" + formatQuality(p.Quality)
}

// ParseAccept parses the values of an Accept header into preferences in header order.
// Elements are separated by commas outside of quoted strings and empty elements are
// skipped. The q parameter sets the quality (1 when absent); parameters following it
// are accept extensions and are discarded. A lone "*" is read as "*/*". Any malformed
// element fails the whole header with an error wrapping ErrMalformedValue. If there
// are no elements at all a nil slice is returned, which callers should usually treat
// as "*/*".
func ParseAccept(values ...string) ([]Preference, error) {
	var prefs []Preference
	for _, elem := range splitList(values) {
		pref, err := parsePreference(elem)
		if err != nil {
			return nil, fmt.Errorf("accept element %d: %w", len(prefs), err)
		}
		pref.Index = len(prefs)
		prefs = append(prefs, pref)
	}
	return prefs, nil
}

func parsePreference(elem string) (pref Preference, err error) {
	if head, _, _ := strings.Cut(elem, ";"); strings.TrimSpace(head) == wildcard {
		elem = "*/*" + elem[len(head):]
	}

	var (
		typ, subtype string
		params       []param
	)
	if typ, subtype, params, err = scan(elem); err != nil {
		return Preference{}, err
	}

	pref.Quality = 1
	var values map[string]string
	for _, p := range params {
		key := strings.ToLower(p.key)
		if key == "q" {
			if pref.Quality, err = parseQuality(p.value); err != nil {
				return Preference{}, err
			}
			break
		}

		if values == nil {
			values = make(map[string]string, len(params))
		}
		values[key] = p.value
	}

	if pref.MediaType, err = New(typ, subtype, values); err != nil {
		return Preference{}, err
	}
	return pref, nil
}

// parseQuality parses a qvalue: "0" or "1" optionally followed by a dot and up to
// three digits, which must be zeros after a "1" (RFC 7231 Section 5.3.1).
func parseQuality(s string) (float64, error) {
	if !isQValue(s) {
		return 0, malformed("invalid quality value %q", s)
	}

	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, malformed("invalid quality value %q", s)
	}
	return q, nil
}

func isQValue(s string) bool {
	if s == "" || (s[0] != '0' && s[0] != '1') {
		return false
	}

	frac := s[1:]
	if frac == "" {
		return true
	}
	if frac[0] != '.' || len(frac) > 4 {
		return false
	}

	for i := 1; i < len(frac); i++ {
		switch c := frac[i]; {
		case c < '0' || c > '9':
			return false
		case s[0] == '1' && c != '0':
			return false
		}
	}
	return true
}

// formatQuality writes q with at most three decimals as RFC 7231 qvalues require.
// A positive quality is never written as 0.
func formatQuality(q float64) string {
	s := strconv.FormatFloat(q, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "0" && q > 0 {
		return "0.001"
	}
	return s
}

// FormatAccept returns the Accept header value for prefs.
func FormatAccept(prefs []Preference) string {
	parts := make([]string, len(prefs))
	for i, pref := range prefs {
		parts[i] = pref.String()
	}
	return strings.Join(parts, ", ")
}

// SortPreferences orders prefs from the most to the least preferred: by descending
// quality, then descending specificity (concrete types before wildcards, more
// parameters before fewer), then by their position in the header.
func SortPreferences(prefs []Preference) {
	slices.SortStableFunc(prefs, comparePreference)
}

func comparePreference(a, b Preference) int {
	if c := cmp.Compare(b.Quality, a.Quality); c != 0 {
		return c
	}
	if c := compareSpecificity(b.MediaType, a.MediaType); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}
