package utils

import "errors"

// Error taxonomy shared by the server and the device engine.
var (
	ErrNotFound     = errors.New("code not found")
	ErrUnauthorized = errors.New("incorrect PIN")
	ErrExpired      = errors.New("session has ended")
	ErrNoPermission = errors.New("insufficient permission")
)
