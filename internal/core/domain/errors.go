package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRoomNotFound        = errors.New("room not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrHierarchyCorrupt    = errors.New("room hierarchy corrupt")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedCandidate  = errors.New("malformed candidate")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
