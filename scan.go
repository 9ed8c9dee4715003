package conneg

import (
	"strconv"
	"strings"
)

type param struct {
	key, value string
}

// scan splits a media type descriptor into its type, subtype and parameters, in the
// order the parameters appear. Names are returned as written; New normalizes them.
func scan(text string) (typ, subtype string, params []param, err error) {
	p := &parser{s: text}
	typ = p.until('/', ';')
	if !p.consume('/') {
		return "", "", nil, malformed("expected '/' after type, found %s", p.first())
	}
	subtype = p.until(';')

	for p.consume(';') {
		p.space()
		if p.eof() || p.peek() == ';' {
			continue
		}

		var prm param
		if prm.key = p.token(); prm.key == "" {
			return "", "", nil, malformed("expected parameter name, found %s", p.first())
		}

		p.space()
		if !p.consume('=') {
			return "", "", nil, malformed("expected '=' after parameter %q, found %s", prm.key, p.first())
		}
		p.space()

		if p.peek() == '"' {
			if prm.value, err = p.quotedString(); err != nil {
				return "", "", nil, err
			}
		} else if prm.value = p.bare(); prm.value == "" {
			return "", "", nil, malformed("expected value for parameter %q, found %s", prm.key, p.first())
		}

		p.space()
		if !p.eof() && p.peek() != ';' {
			return "", "", nil, malformed("unexpected %s after parameter %q", p.first(), prm.key)
		}
		params = append(params, prm)
	}
	return typ, subtype, params, nil
}

// splitList splits comma separated header values into their elements. Commas inside
// quoted strings do not separate elements, and empty elements are dropped
// (RFC 7230 Section 7).
func splitList(values []string) []string {
	var elems []string
	for _, v := range values {
		var (
			start   int
			quoted  bool
			escaped bool
		)
		for i := 0; i < len(v); i++ {
			switch c := v[i]; {
			case escaped:
				escaped = false
			case quoted && c == '\\':
				escaped = true
			case c == '"':
				quoted = !quoted
			case c == ',' && !quoted:
				if elem := strings.TrimSpace(v[start:i]); elem != "" {
					elems = append(elems, elem)
				}
				start = i + 1
			}
		}
		if elem := strings.TrimSpace(v[start:]); elem != "" {
			elems = append(elems, elem)
		}
	}
	return elems
}

type parser struct {
	s string
}

func (p *parser) eof() bool {
	return p.s == ""
}

func (p *parser) peek() byte {
	if len(p.s) == 0 {
		return 0
	}
	return p.s[0]
}

// first describes the next character for error messages.
func (p *parser) first() string {
	if len(p.s) == 0 {
		return "EOF"
	}
	return strconv.QuoteRuneToASCII(rune(p.s[0]))
}

func (p *parser) consume(c byte) bool {
	if p.peek() != c || p.eof() {
		return false
	}
	p.s = p.s[1:]
	return true
}

func (p *parser) space() {
	i := 0
	for ; i < len(p.s); i++ {
		if c := p.s[i]; c != ' ' && c != '\t' {
			break
		}
	}
	p.s = p.s[i:]
}

// until consumes and returns everything before the first of the stop bytes.
func (p *parser) until(stop ...byte) string {
	i := 0
	for ; i < len(p.s); i++ {
		if strings.IndexByte(string(stop), p.s[i]) != -1 {
			break
		}
	}
	run := p.s[:i]
	p.s = p.s[i:]
	return run
}

func (p *parser) token() string {
	i := 0
	for ; i < len(p.s); i++ {
		if byteClass[p.s[i]] != cTokenOK {
			break
		}
	}
	run := p.s[:i]
	p.s = p.s[i:]
	return run
}

// bare consumes an unquoted parameter value. This is more lenient than a token:
// anything up to whitespace or ';' is accepted, e.g. profile=http://example.com/p.
func (p *parser) bare() string {
	i := 0
	for ; i < len(p.s); i++ {
		if c := p.s[i]; c == ';' || c == ' ' || c == '\t' || c == '"' {
			break
		}
	}
	run := p.s[:i]
	p.s = p.s[i:]
	return run
}

func (p *parser) quotedString() (string, error) {
	var b strings.Builder
	for i := 1; i < len(p.s); i++ {
		switch c := p.s[i]; c {
		case '"':
			p.s = p.s[i+1:]
			return b.String(), nil
		case '\\':
			if i++; i < len(p.s) {
				b.WriteByte(p.s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	p.s = ""
	return "", malformed("unterminated quoted string")
}
