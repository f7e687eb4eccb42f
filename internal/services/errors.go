package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrRateLimit  = errors.New("rate limited")
	ErrProcessing = errors.New("processing error")
	ErrTimeout    = errors.New("timeout")
	ErrInternal   = errors.New("internal error")
)

// Kind is the stable, machine-readable name of an error class. It travels on
// the progress wire so consumers can decide whether a retry makes sense.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindRateLimit    Kind = "rate_limit"
	KindProcessing   Kind = "processing"
	KindTimeout      Kind = "timeout"
	KindInternal     Kind = "internal"
	KindUnclassified Kind = "unclassified"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify reports which marker an error carries. Context deadlines count as
// timeouts even when nothing wrapped them.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnclassified
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimit):
		return KindRateLimit
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrInternal):
		return KindInternal
	default:
		return KindUnclassified
	}
}

// Marker returns the sentinel for kind, so errors that crossed the wire as
// a Kind classify the same way on the receiving side. Unknown kinds map to
// nil.
func Marker(kind Kind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindRateLimit:
		return ErrRateLimit
	case KindProcessing:
		return ErrProcessing
	case KindTimeout:
		return ErrTimeout
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Recoverable reports whether a failure confined to one category should let
// the remaining categories proceed.
func Recoverable(err error) bool {
	switch Classify(err) {
	case KindRateLimit, KindProcessing, KindTimeout, KindNotFound:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the response code the API reports for it.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindProcessing:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
