package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDeckNotFound       = errors.New("deck not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrInvalidSessionCode = errors.New("invalid code for session")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrSessionNotLive     = errors.New("session is not live")
)
