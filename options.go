package conneg

import (
	"net/http"

	"github.com/lestrrat-go/option"
)

type Option = option.Interface

type identCache struct{}

func (identCache) String() string { return "WithCache" }

type identNotAcceptableHandler struct{}

func (identNotAcceptableHandler) String() string { return "WithNotAcceptableHandler" }

// WithCache memoizes negotiation results in the given cache. Without it every call
// parses and ranks the Accept header.
func WithCache(cache Cache) Option {
	return option.New(identCache{}, cache)
}

// WithNotAcceptableHandler sets the handler the middleware calls when no available
// media type is acceptable. The default responds with 406 Not Acceptable and lists
// the available media types.
func WithNotAcceptableHandler(h http.Handler) Option {
	return option.New(identNotAcceptableHandler{}, h)
}
