package domain

import "errors"

// Error kinds surfaced to callers. Call sites wrap them with detail via
// fmt.Errorf("%w: ...") and callers test with errors.Is.
var (
	ErrNotFound   = errors.New("property not found")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
	ErrStore      = errors.New("store error")
)

// ErrorKind names the kind of err for transport layers and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
