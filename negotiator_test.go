package conneg_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.rtnl.ai/conneg"
)

//===========================================================================
// Testing Helpers
//===========================================================================

// countingCache records the calls made by the Negotiator to an in-memory cache.
type countingCache struct {
	sync.Mutex
	store            conneg.InMemoryCache
	gets, puts, dels int
}

func (c *countingCache) Get(key string) ([]byte, bool) {
	c.Lock()
	c.gets++
	c.Unlock()
	return c.store.Get(key)
}

func (c *countingCache) Put(key string, val []byte) {
	c.Lock()
	c.puts++
	c.Unlock()
	c.store.Put(key, val)
}

func (c *countingCache) Del(key string) {
	c.Lock()
	c.dels++
	c.Unlock()
	c.store.Del(key)
}

func (c *countingCache) counts() (gets, puts, dels int) {
	c.Lock()
	defer c.Unlock()
	return c.gets, c.puts, c.dels
}

// captureLogs redirects the package logger into a buffer for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	prev := conneg.GetLogger()
	t.Cleanup(func() { conneg.SetLogger(prev) })

	buf := &bytes.Buffer{}
	conneg.SetLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return buf
}

func mkNegotiator(t testing.TB, opts ...conneg.Option) *conneg.Negotiator {
	n, err := conneg.NewNegotiator(mkAvailable("text/html", "application/json", "text/plain; charset=utf-8"), opts...)
	require.NoError(t, err)
	return n
}

//===========================================================================
// Negotiator Tests
//===========================================================================

func TestNewNegotiator(t *testing.T) {
	_, err := conneg.NewNegotiator(nil)
	require.ErrorIs(t, err, conneg.ErrNoOffers)

	_, err = conneg.NewNegotiator([]conneg.MediaType{conneg.MustParse("text/html"), {}})
	require.ErrorIs(t, err, conneg.ErrMalformedValue)

	// The negotiator keeps its own copy of the available list.
	available := mkAvailable("text/html", "application/json")
	n, err := conneg.NewNegotiator(available)
	require.NoError(t, err)

	available[0] = conneg.MustParse("image/png")
	require.Equal(t, "text/html", n.Available()[0].String())

	copied := n.Available()
	copied[1] = conneg.MustParse("image/png")
	require.Equal(t, "application/json", n.Available()[1].String())
}

func TestNegotiatorNegotiate(t *testing.T) {
	tests := []struct {
		name     string
		accept   []string
		expected string
		ok       bool
	}{
		{"no header", nil, "text/html", true},
		{"empty header", []string{""}, "text/html", true},
		{"exact match", []string{"application/json"}, "application/json", true},
		{"parameters must match", []string{"text/plain; charset=latin1, text/plain; charset=utf-8;q=0.5"}, "text/plain; charset=utf-8", true},
		{"split across values", []string{"image/png", "application/json;q=0.5"}, "application/json", true},
		{"wildcard subtype", []string{"text/*"}, "text/html", true},
		{"malformed header is disregarded", []string{"text/html;q=high, application/json"}, "text/html", true},
		{"nothing acceptable", []string{"image/png, application/xml"}, "", false},
		{"everything rejected", []string{"*/*;q=0"}, "", false},
	}

	n := mkNegotiator(t)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			match, ok := n.Negotiate(test.accept...)
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.expected, match.MediaType.String())
		})
	}
}

func TestNegotiatorMalformedLogged(t *testing.T) {
	logs := captureLogs(t)

	match, ok := mkNegotiator(t).Negotiate("text/")
	require.True(t, ok)
	require.Equal(t, "text/html", match.MediaType.String())
	require.Equal(t, "*/*", match.Pattern.MediaType.String())
	require.Contains(t, logs.String(), "disregarding malformed accept header")
}

func TestNegotiatorCache(t *testing.T) {
	cache := &countingCache{}
	n := mkNegotiator(t, conneg.WithCache(cache))
	uncached := mkNegotiator(t)

	// The first negotiation misses and stores the result.
	match, ok := n.Negotiate("application/json, text/*;q=0.5")
	require.True(t, ok)
	require.Equal(t, "application/json", match.MediaType.String())

	gets, puts, dels := cache.counts()
	require.Equal(t, 1, gets)
	require.Equal(t, 1, puts)
	require.Equal(t, 0, dels)
	require.Equal(t, 1, cache.store.Len())

	// An equivalent header is served from the cache and is identical to the result
	// computed without one.
	match, ok = n.Negotiate("application/json,  text/*;q=0.5")
	require.True(t, ok)

	expected, _ := uncached.Negotiate("application/json, text/*;q=0.5")
	require.Equal(t, expected, match)

	gets, puts, _ = cache.counts()
	require.Equal(t, 2, gets)
	require.Equal(t, 1, puts)

	// Failed negotiations are cached as well.
	for i := 0; i < 2; i++ {
		_, ok = n.Negotiate("image/png")
		require.False(t, ok)
	}

	gets, puts, _ = cache.counts()
	require.Equal(t, 4, gets)
	require.Equal(t, 2, puts)
	require.Equal(t, 2, cache.store.Len())
}

func TestNegotiatorCacheQuotedValues(t *testing.T) {
	available := mkAvailable(`text/html; foo="a  b"`)
	uncached, err := conneg.NewNegotiator(available)
	require.NoError(t, err)

	cached, err := conneg.NewNegotiator(available, conneg.WithCache(&conneg.InMemoryCache{}))
	require.NoError(t, err)

	// The headers differ only in the whitespace of a quoted value.
	for _, accept := range []string{`text/html;foo="a b"`, `text/html;foo="a  b"`, `text/html;foo="a b"`} {
		expected, ok := uncached.Negotiate(accept)
		match, found := cached.Negotiate(accept)
		require.Equal(t, ok, found, "negotiating %q", accept)
		require.Equal(t, expected, match, "negotiating %q", accept)
	}

	_, ok := cached.Negotiate(`text/html;foo="a  b"`)
	require.True(t, ok)
}

func TestNegotiatorUndecodableCacheEntry(t *testing.T) {
	logs := captureLogs(t)

	cache := &countingCache{}
	n := mkNegotiator(t, conneg.WithCache(cache))

	key := conneg.CacheKey("text/html,application/json,text/plain; charset=utf-8", []string{"text/plain"})
	cache.store.Put(key, []byte("not a cached match"))

	match, ok := n.Negotiate("text/plain")
	require.True(t, ok)
	require.Equal(t, "text/plain; charset=utf-8", match.MediaType.String())

	_, puts, dels := cache.counts()
	require.Equal(t, 1, puts)
	require.Equal(t, 1, dels)
	require.Contains(t, logs.String(), "discarding undecodable negotiation cache entry")

	// The entry was replaced with a decodable one.
	val, ok := cache.store.Get(key)
	require.True(t, ok)

	cached, found, err := conneg.DecodeMatch(val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, match, cached)
}

func TestNegotiatorRace(t *testing.T) {
	n := mkNegotiator(t, conneg.WithCache(&conneg.InMemoryCache{}))
	headers := []string{"text/html", "application/json;q=0.9, */*;q=0.1", "image/png", "", "text/*"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 256; j++ {
				n.Negotiate(headers[(i+j)%len(headers)])
			}
		}(i)
	}
	wg.Wait()
}

//===========================================================================
// Middleware Tests
//===========================================================================

func TestHandler(t *testing.T) {
	n := mkNegotiator(t)

	var (
		called bool
		match  conneg.Match
		ok     bool
	)
	handler := n.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		match, ok = conneg.MatchFromContext(r.Context())
		w.Header().Set("Content-Type", match.MediaType.String())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("Acceptable", func(t *testing.T) {
		called = false
		req := (&TestRequest{url: "/", headers: map[string]string{"Accept": "application/json, */*;q=0.1"}}).HTTP()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.True(t, called)
		require.True(t, ok)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Equal(t, []string{"Accept"}, rec.Header().Values("Vary"))
		require.Equal(t, 1.0, match.Quality)
	})

	t.Run("NoAccept", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, (&TestRequest{url: "/"}).HTTP())

		require.True(t, called)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	})

	t.Run("NotAcceptable", func(t *testing.T) {
		called = false
		req := (&TestRequest{url: "/", headers: map[string]string{"Accept": "image/png"}}).HTTP()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.False(t, called)
		require.Equal(t, http.StatusNotAcceptable, rec.Code)
		require.Equal(t, []string{"Accept"}, rec.Header().Values("Vary"))
		require.Equal(t, fmt.Sprintf("%s; available: text/html,application/json,text/plain; charset=utf-8\n", conneg.ErrNotAcceptable), rec.Body.String())
	})
}

func TestHandlerNotAcceptableHandler(t *testing.T) {
	custom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	n := mkNegotiator(t, conneg.WithNotAcceptableHandler(custom))
	handler := n.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	}))

	req := (&TestRequest{url: "/", headers: map[string]string{"Accept": "text/html;q=0"}}).HTTP()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMatchFromContext(t *testing.T) {
	req := (&TestRequest{url: "/"}).HTTP()
	_, ok := conneg.MatchFromContext(req.Context())
	require.False(t, ok)

	expected := conneg.Match{MediaType: conneg.MustParse("text/html"), Quality: 0.5}
	match, ok := conneg.MatchFromContext(conneg.WithMatch(req.Context(), expected))
	require.True(t, ok)
	require.Equal(t, expected, match)
}

func TestAddVary(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		expected []string
	}{
		{"empty", nil, []string{"Accept"}},
		{"other header", []string{"Origin"}, []string{"Origin", "Accept"}},
		{"already listed", []string{"Origin, Accept"}, []string{"Origin, Accept"}},
		{"different case", []string{"accept-encoding, accept"}, []string{"accept-encoding, accept"}},
		{"prefix is not a match", []string{"Accept-Language"}, []string{"Accept-Language", "Accept"}},
		{"wildcard", []string{"*"}, []string{"*"}},
	}

	for _, test := range tests {
		h := make(http.Header)
		for _, v := range test.existing {
			h.Add("Vary", v)
		}

		conneg.AddVary(h, "Accept")
		require.Equal(t, test.expected, h.Values("Vary"), "Test Case: %q", test.name)
	}
}

func TestEncodeMatch(t *testing.T) {
	match, ok := conneg.Negotiate(
		mkAvailable(`text/plain; charset=utf-8; title="a; b"`),
		mkRequested(t, "application/json, text/plain;charset=utf-8;q=0.25"),
	)
	require.True(t, ok)

	val := conneg.EncodeMatch(match, true)
	require.Equal(t, "0.25\n1\ntext/plain; charset=utf-8; title=\"a; b\"\ntext/plain; charset=utf-8", string(val))

	decoded, found, err := conneg.DecodeMatch(val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, match, decoded)

	// No match is encoded as an empty value.
	val = conneg.EncodeMatch(conneg.Match{}, false)
	require.Empty(t, val)

	decoded, found, err = conneg.DecodeMatch(val)
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, decoded.MediaType.IsZero())
}

func TestDecodeMatchErrors(t *testing.T) {
	tests := []string{
		"garbage",
		"1\n0\ntext/html",
		"high\n0\ntext/html\n*/*",
		"1\nfirst\ntext/html\n*/*",
		"1\n0\ntext\n*/*",
		"1\n0\ntext/html\n*/",
		"1\n0\ntext/html\n*/*\nextra",
	}

	for _, test := range tests {
		_, found, err := conneg.DecodeMatch([]byte(test))
		require.Error(t, err, "expected %q to fail", test)
		require.False(t, found)
	}
}

//===========================================================================
// Benchmarks
//===========================================================================

func BenchmarkNegotiator(b *testing.B) {
	accept := "text/html, application/xhtml+xml, application/xml;q=0.9, image/avif, image/webp, */*;q=0.8"

	b.Run("Uncached", func(b *testing.B) {
		n := mkNegotiator(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			n.Negotiate(accept)
		}
	})

	b.Run("InMemory", func(b *testing.B) {
		n := mkNegotiator(b, conneg.WithCache(&conneg.InMemoryCache{}))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			n.Negotiate(accept)
		}
	})
}
