package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/jonathan/skillsense/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	switch {
	case errors.As(err, &verr), errors.Is(err, types.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrUnknownRole):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
