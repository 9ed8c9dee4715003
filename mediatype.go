package conneg

import (
	"cmp"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/lestrrat-go/blackmagic"
)

const wildcard = "*"

// anything is the media range implied by a request without an Accept header.
var anything = MediaType{typ: wildcard, subtype: wildcard}

// MediaType is a parsed and normalized media type such as text/html; charset=utf-8.
// The type, subtype and parameter names are lowercase; parameter values are kept
// verbatim. A MediaType is immutable once constructed and is safe to share between
// goroutines. The zero value is not a valid media type (see IsZero).
type MediaType struct {
	typ     string
	subtype string
	params  map[string]string
}

// New creates a MediaType from its parts. Surrounding whitespace is trimmed from the
// type and subtype and both are lowercased, as are the parameter names. An error
// wrapping ErrMalformedValue is returned if the type or subtype is empty or contains
// characters other than alphanumerics, '-', '.' and '+' (or is not exactly "*"), if a
// parameter name is not a token, or if a parameter value contains control characters.
// Use Params to build the parameter map from non-string values.
func New(typ, subtype string, params map[string]string) (MediaType, error) {
	mt := MediaType{
		typ:     strings.ToLower(strings.TrimSpace(typ)),
		subtype: strings.ToLower(strings.TrimSpace(subtype)),
	}

	switch {
	case mt.typ == "":
		return MediaType{}, malformed("empty type")
	case mt.subtype == "":
		return MediaType{}, malformed("empty subtype in %q", mt.typ+"/")
	case !isName(mt.typ):
		return MediaType{}, malformed("invalid type %q", mt.typ)
	case !isName(mt.subtype):
		return MediaType{}, malformed("invalid subtype %q", mt.subtype)
	}

	if len(params) > 0 {
		mt.params = make(map[string]string, len(params))
		for key, value := range params {
			key = strings.ToLower(strings.TrimSpace(key))
			if !isToken(key) {
				return MediaType{}, malformed("invalid parameter name %q", key)
			}
			if !isRepresentable(value) {
				return MediaType{}, malformed("parameter %q contains control characters", key)
			}
			if _, ok := mt.params[key]; ok {
				return MediaType{}, malformed("duplicate parameter %q", key)
			}
			mt.params[key] = value
		}
	}
	return mt, nil
}

// MustNew is like New but panics if the media type is malformed.
func MustNew(typ, subtype string, params map[string]string) MediaType {
	mt, err := New(typ, subtype, params)
	if err != nil {
		panic(err)
	}
	return mt
}

// Params converts parameter values of any type into their textual form so that they
// can be passed to New. Strings and byte slices are used as is, numbers and booleans
// are formatted with strconv, fmt.Stringers with their String method, and anything
// else with fmt.Sprint. A nil value, including a nil pointer, becomes the empty string.
func Params(values map[string]any) map[string]string {
	if values == nil {
		return nil
	}

	params := make(map[string]string, len(values))
	for key, value := range values {
		params[key] = stringify(value)
	}
	return params
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ""
		}
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Parse parses a media type descriptor such as `text/html; charset="utf-8"`.
// Quoted parameter values are unquoted and backslash escapes are resolved. Empty
// parameter segments (e.g. a trailing ';') are ignored and a repeated parameter
// replaces the earlier one. Malformed input returns an error wrapping
// ErrMalformedValue and never a partial value.
func Parse(text string) (MediaType, error) {
	typ, subtype, params, err := scan(text)
	if err != nil {
		return MediaType{}, err
	}

	var values map[string]string
	if len(params) > 0 {
		values = make(map[string]string, len(params))
		for _, p := range params {
			values[strings.ToLower(p.key)] = p.value
		}
	}
	return New(typ, subtype, values)
}

// MustParse is like Parse but panics if the text is malformed. It simplifies the
// declaration of the media types a server is able to produce.
func MustParse(text string) MediaType {
	mt, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return mt
}

// Type returns the primary type, e.g. "text" for text/html.
func (m MediaType) Type() string {
	return m.typ
}

// Subtype returns the subtype, e.g. "html" for text/html.
func (m MediaType) Subtype() string {
	return m.subtype
}

// Param returns the value of the named parameter; the lookup is case-insensitive.
func (m MediaType) Param(key string) (value string, ok bool) {
	value, ok = m.params[strings.ToLower(key)]
	return value, ok
}

// GetParam assigns the value of the named parameter to dst, which must be a pointer
// to a string or to an interface that a string can be assigned to.
func (m MediaType) GetParam(key string, dst any) error {
	value, ok := m.Param(key)
	if !ok {
		return fmt.Errorf("conneg: parameter %q is not set on %s", key, m)
	}
	return blackmagic.AssignIfCompatible(dst, value)
}

// Params returns a copy of the parameters.
func (m MediaType) Params() map[string]string {
	return maps.Clone(m.params)
}

// ParamKeys returns the parameter names in sorted order.
func (m MediaType) ParamKeys() []string {
	return slices.Sorted(maps.Keys(m.params))
}

// WithParam returns a copy of m with the named parameter set to value.
func (m MediaType) WithParam(key, value string) (MediaType, error) {
	params := m.Params()
	if params == nil {
		params = make(map[string]string, 1)
	}

	key = strings.ToLower(strings.TrimSpace(key))
	params[key] = value
	return New(m.typ, m.subtype, params)
}

// WithoutParams returns m stripped of all its parameters.
func (m MediaType) WithoutParams() MediaType {
	return MediaType{typ: m.typ, subtype: m.subtype}
}

// IsWildcard reports whether either the type or the subtype is "*".
func (m MediaType) IsWildcard() bool {
	return m.typ == wildcard || m.subtype == wildcard
}

// IsZero reports whether m is the zero value rather than a constructed media type.
func (m MediaType) IsZero() bool {
	return m.typ == ""
}

// String returns the canonical text of m: type/subtype followed by "; key=value" for
// every parameter in key order. Values that are not tokens are quoted.
func (m MediaType) String() string {
	if m.IsZero() {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.typ)
	b.WriteByte('/')
	b.WriteString(m.subtype)
	for _, key := range m.ParamKeys() {
		b.WriteString("; ")
		b.WriteString(key)
		b.WriteByte('=')
		writeValue(&b, m.params[key])
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (m MediaType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MediaType) UnmarshalText(text []byte) (err error) {
	var mt MediaType
	if mt, err = Parse(string(text)); err != nil {
		return err
	}
	*m = mt
	return nil
}

// Equal reports whether m and o have the same type, subtype and parameters.
// Parameter values are compared case-sensitively.
func (m MediaType) Equal(o MediaType) bool {
	return m.typ == o.typ && m.subtype == o.subtype && maps.Equal(m.params, o.params)
}

// Compare orders m against o; see the package level Compare.
func (m MediaType) Compare(o MediaType) int {
	return Compare(m, o)
}

// Compare returns -1 if a is less specific than b, +1 if it is more specific and 0
// if they are equal, so that slices.SortFunc orders media types from the least to
// the most specific. A wildcard type sorts before any concrete type, then a wildcard
// subtype before a concrete subtype, then fewer parameters before more. Media types of
// equal specificity are ordered by type and subtype name and lastly by their
// canonical parameter text, which makes Compare return 0 only for equal values.
func Compare(a, b MediaType) int {
	if c := compareSpecificity(a, b); c != 0 {
		return c
	}
	if c := strings.Compare(a.typ, b.typ); c != 0 {
		return c
	}
	if c := strings.Compare(a.subtype, b.subtype); c != 0 {
		return c
	}
	return strings.Compare(a.paramText(), b.paramText())
}

// compareSpecificity applies only the wildcard and parameter count rules of Compare.
// Both wildcard rules apply whenever the compared parts differ, which makes the
// result equivalent to comparing the tuple (type is concrete, subtype is concrete,
// parameter count).
func compareSpecificity(a, b MediaType) int {
	if a.typ != b.typ {
		if a.typ == wildcard {
			return -1
		}
		if b.typ == wildcard {
			return 1
		}
	}

	if a.subtype != b.subtype {
		if a.subtype == wildcard {
			return -1
		}
		if b.subtype == wildcard {
			return 1
		}
	}

	return cmp.Compare(len(a.params), len(b.params))
}

func (m MediaType) paramText() string {
	if len(m.params) == 0 {
		return ""
	}

	var b strings.Builder
	for i, key := range m.ParamKeys() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(key)
		b.WriteByte('=')
		writeValue(&b, m.params[key])
	}
	return b.String()
}

// Accepts reports whether the media range m admits the offered media type: the type
// and subtype of m are each either "*" or equal to those of offer, and every parameter
// of m is present in offer with the same value. The offer may carry extra parameters.
func (m MediaType) Accepts(offer MediaType) bool {
	if m.typ != wildcard && m.typ != offer.typ {
		return false
	}
	if m.subtype != wildcard && m.subtype != offer.subtype {
		return false
	}

	for key, value := range m.params {
		if v, ok := offer.params[key]; !ok || v != value {
			return false
		}
	}
	return true
}
