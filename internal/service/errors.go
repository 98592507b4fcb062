package service

import "errors"

var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotFound also stands in for a failed ownership check so callers
	// cannot probe which ids exist.
	ErrNotFound             = errors.New("not found")
	ErrInternal             = errors.New("internal error")
	ErrIncorrectCredentials = errors.New("incorrect username or password")
	ErrForbiddenRole        = errors.New("role change not permitted")
)
