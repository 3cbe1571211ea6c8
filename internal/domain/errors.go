package domain

import "errors"

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoToken         = errors.New("no token available")
	ErrGameUnavailable = errors.New("game not available")
)
