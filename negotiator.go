package conneg

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Negotiator selects among a fixed list of available media types for incoming Accept
// headers, optionally memoizing the results in a Cache. It is safe for concurrent use
// as long as the Cache is.
type Negotiator struct {
	available     []MediaType
	offers        string
	cache         Cache
	notAcceptable http.Handler
}

// NewNegotiator creates a Negotiator for the available media types, listed in the
// order the server prefers them.
func NewNegotiator(available []MediaType, opts ...Option) (*Negotiator, error) {
	if len(available) == 0 {
		return nil, ErrNoOffers
	}

	names := make([]string, len(available))
	for i, mt := range available {
		if mt.IsZero() {
			return nil, fmt.Errorf("%w: available media type %d is empty", ErrMalformedValue, i)
		}
		names[i] = mt.String()
	}

	n := &Negotiator{
		available: slices.Clone(available),
		offers:    strings.Join(names, ","),
	}
	n.notAcceptable = http.HandlerFunc(n.serveNotAcceptable)

	for _, opt := range opts {
		switch opt.Ident() {
		case identCache{}:
			n.cache = opt.Value().(Cache)
		case identNotAcceptableHandler{}:
			n.notAcceptable = opt.Value().(http.Handler)
		}
	}
	return n, nil
}

// Available returns a copy of the media types the Negotiator chooses from.
func (n *Negotiator) Available() []MediaType {
	return slices.Clone(n.available)
}

// Negotiate selects the best available media type for the values of an Accept header.
// No values (or only empty ones) means the client accepts anything. A malformed header
// is logged and disregarded in the same way, as RFC 7231 Section 5.3.2 permits.
func (n *Negotiator) Negotiate(accept ...string) (Match, bool) {
	if n.cache == nil {
		return n.negotiate(accept)
	}

	key := cacheKey(n.offers, accept)
	if val, ok := n.cache.Get(key); ok {
		match, found, err := decodeMatch(val)
		if err == nil {
			return match, found
		}

		GetLogger().Warn("discarding undecodable negotiation cache entry", slog.String("key", key), slog.Any("error", err))
		n.cache.Del(key)
	}

	match, found := n.negotiate(accept)
	n.cache.Put(key, encodeMatch(match, found))
	return match, found
}

// NegotiateRequest negotiates using the Accept header of r.
func (n *Negotiator) NegotiateRequest(r *http.Request) (Match, bool) {
	return n.Negotiate(r.Header.Values("Accept")...)
}

func (n *Negotiator) negotiate(accept []string) (Match, bool) {
	prefs, err := ParseAccept(accept...)
	if err != nil {
		GetLogger().Debug("disregarding malformed accept header", slog.Any("error", err))
		prefs = nil
	}

	if len(prefs) == 0 {
		prefs = []Preference{{MediaType: anything, Quality: 1}}
	}
	return Negotiate(n.available, prefs)
}

// Handler wraps next with content negotiation. Responses vary on Accept; requests with
// an acceptable media type reach next with the Match in their context (see
// MatchFromContext), all others are passed to the not acceptable handler.
func (n *Negotiator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addVary(w.Header(), "Accept")

		match, ok := n.NegotiateRequest(r)
		if !ok {
			n.notAcceptable.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithMatch(r.Context(), match)))
	})
}

func (n *Negotiator) serveNotAcceptable(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("%s; available: %s", ErrNotAcceptable, n.offers), http.StatusNotAcceptable)
}

// addVary appends name to the Vary header unless it, or a wildcard, is already listed.
func addVary(h http.Header, name string) {
	for _, elem := range splitList(h.Values("Vary")) {
		if elem == wildcard || strings.EqualFold(elem, name) {
			return
		}
	}
	h.Add("Vary", name)
}

// Cached matches are stored as four lines: quality, preference index, selected media
// type and the matched media range. A miss is stored as an empty value.
func encodeMatch(match Match, found bool) []byte {
	if !found {
		return []byte{}
	}

	return []byte(strings.Join([]string{
		strconv.FormatFloat(match.Quality, 'g', -1, 64),
		strconv.Itoa(match.Pattern.Index),
		match.MediaType.String(),
		match.Pattern.MediaType.String(),
	}, "\n"))
}

func decodeMatch(val []byte) (match Match, found bool, err error) {
	if len(val) == 0 {
		return Match{}, false, nil
	}

	lines := strings.Split(string(val), "\n")
	if len(lines) != 4 {
		return Match{}, false, errors.New("conneg: cached match must have four lines")
	}

	if match.Quality, err = strconv.ParseFloat(lines[0], 64); err != nil {
		return Match{}, false, err
	}
	if match.Pattern.Index, err = strconv.Atoi(lines[1]); err != nil {
		return Match{}, false, err
	}
	if match.MediaType, err = Parse(lines[2]); err != nil {
		return Match{}, false, err
	}
	if match.Pattern.MediaType, err = Parse(lines[3]); err != nil {
		return Match{}, false, err
	}

	match.Pattern.Quality = match.Quality
	return match, true, nil
}
