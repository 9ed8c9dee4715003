/*
Package conneg parses, compares and serializes media types and implements HTTP
content negotiation as described in RFC 7231 Section 5.3.2.

A MediaType is an immutable, normalized type/subtype with parameters:

	mt, err := conneg.Parse(`text/html; charset="utf-8"`)
	mt.String() // text/html; charset=utf-8

Media types are totally ordered from the least to the most specific (see Compare),
which Negotiate uses to prefer text/html over text/* at equal quality:

	prefs, err := conneg.ParseAccept(r.Header.Values("Accept")...)
	match, ok := conneg.Negotiate(available, prefs)

Servers will usually wrap their handlers with a Negotiator, which memoizes results in
a Cache (in memory, ristretto or leveldb) and responds 406 Not Acceptable for them:

	negotiator, err := conneg.NewNegotiator(available, conneg.WithCache(&conneg.InMemoryCache{}))
	http.Handle("/", negotiator.Handler(handler))
*/
package conneg

import (
	"log/slog"
	"net/http"
)

//===========================================================================
// Transport
//===========================================================================

// Transport is an http.RoundTripper that advertises the client's preferences in the
// Accept header of requests that do not set one, and logs a warning when a response's
// Content-Type is not acceptable under the request's Accept header.
type Transport struct {
	// The RoundTripper used to make requests, http.DefaultTransport if nil.
	Transport http.RoundTripper

	// Preferences sent when a request has no Accept header.
	Accept []Preference
}

// Client returns an *http.Client that uses the Transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper. The request is cloned before the Accept
// header is added.
func (t *Transport) RoundTrip(req *http.Request) (rep *http.Response, err error) {
	if len(t.Accept) > 0 && req.Header.Get("Accept") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept", FormatAccept(t.Accept))
	}

	if rep, err = t.transport().RoundTrip(req); err != nil {
		return nil, err
	}

	if ct := rep.Header.Get("Content-Type"); ct != "" {
		checkAcceptable(req, ct)
	}
	return rep, nil
}

func (t *Transport) transport() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}

func checkAcceptable(req *http.Request, contentType string) {
	log := GetLogger().With(slog.String("url", req.URL.String()), slog.String("content_type", contentType))

	mt, err := Parse(contentType)
	if err != nil {
		log.Warn("response has a malformed content type", slog.Any("error", err))
		return
	}

	prefs, err := ParseAccept(req.Header.Values("Accept")...)
	if err != nil || len(prefs) == 0 {
		return
	}

	if _, ok := Negotiate([]MediaType{mt}, prefs); !ok {
		log.Warn("response content type is not acceptable", slog.String("accept", FormatAccept(prefs)))
	}
}
