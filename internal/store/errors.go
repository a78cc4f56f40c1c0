package store

import "errors"

var (
	ErrClosed = errors.New("state store closed")
)
