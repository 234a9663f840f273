package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the closed set of failure classes a model call can produce.
type Kind int

const (
	// KindFatal failures are not retried.
	KindFatal Kind = iota
	// KindTransient failures are provider-side and expected to clear on retry.
	KindTransient
	// KindOutputInvalid means the model answered but the answer was unusable.
	KindOutputInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindOutputInvalid:
		return "output_invalid"
	default:
		return "fatal"
	}
}

// Error is the normalized form of every failure leaving the model boundary.
type Error struct {
	Kind Kind
	// Code is the provider status when one was found (HTTP code or gRPC code name).
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm %s (%s): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure should be retried.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindOutputInvalid
}

// Invalid wraps err as an output-validation failure.
func Invalid(err error) *Error {
	return &Error{Kind: KindOutputInvalid, Err: err}
}

// KindOf returns the normalized kind of err, probing it if it has not been
// normalized yet.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Normalize(err).Kind
}

var transientText = regexp.MustCompile(`(?i)\b(?:429|500|502|503|504)\b|resource_exhausted|unavailable|deadline_exceeded|deadline exceeded|rate.?limit|quota|overloaded|too many requests|try again later|timed? ?out`)

// Normalize maps a provider error onto the closed Error variant. The SDK
// surfaces failures in several shapes, so each known shape is probed in turn
// before falling back to the message text. Already-normalized errors are
// returned unchanged.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var normalized *Error
	if errors.As(err, &normalized) {
		return normalized
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindFatal, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Code: "DEADLINE_EXCEEDED", Err: err}
	}

	if code, ok := apiErrorCode(err); ok {
		return fromHTTPStatus(code, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return fromHTTPStatus(gErr.Code, err)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown && st.Code() != codes.OK {
		return fromGRPC(st.Code(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTransient, Code: "TIMEOUT", Err: err}
	}

	if transientText.MatchString(err.Error()) {
		return &Error{Kind: KindTransient, Err: err}
	}
	return &Error{Kind: KindFatal, Err: err}
}

// apiErrorCode extracts the HTTP code from genai.APIError in either its value
// or pointer form.
func apiErrorCode(err error) (int, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, true
	}
	return 0, false
}

func fromHTTPStatus(code int, err error) *Error {
	c := fmt.Sprintf("%d", code)
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500 && code <= 599:
		return &Error{Kind: KindTransient, Code: c, Err: err}
	case code == 0:
		if transientText.MatchString(err.Error()) {
			return &Error{Kind: KindTransient, Err: err}
		}
	}
	return &Error{Kind: KindFatal, Code: c, Err: err}
}

func fromGRPC(code codes.Code, err error) *Error {
	switch code {
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return &Error{Kind: KindTransient, Code: code.String(), Err: err}
	}
	return &Error{Kind: KindFatal, Code: code.String(), Err: err}
}
