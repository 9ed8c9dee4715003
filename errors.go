package conneg

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedValue = errors.New("conneg: malformed value")
	ErrNotAcceptable  = errors.New("conneg: no acceptable media type")
	ErrNoOffers       = errors.New("conneg: at least one available media type is required")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedValue}, args...)...)
}
