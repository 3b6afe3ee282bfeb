package crosssale

import (
	"errors"
	"fmt"
)

// Failure classes of a cross-sale call. Every error returned by Client wraps
// exactly one of them; callers that only care about "records or nothing" can
// ignore the distinction.
var (
	ErrValidation = errors.New("crosssale: invalid request")
	ErrTransport  = errors.New("crosssale: transport failure")
	ErrDecode     = errors.New("crosssale: malformed response")
)

// StatusError is returned by HTTPTransport for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// asTransportError makes sure a failure reported by a Transport is classified
// as ErrTransport, whatever the implementation returned.
func asTransportError(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// outcome maps an error to the metrics label for it.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	default:
		return "transport_error"
	}
}
