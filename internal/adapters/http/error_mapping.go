package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

// statusClientClosedRequest is the de facto code for requests abandoned by the caller.
const statusClientClosedRequest = 499

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRoomNotFound), domain.IsKind(err, domain.ErrMessageNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrHierarchyCorrupt):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
