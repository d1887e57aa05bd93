package storage

import "errors"

var (
	ErrOrderNotFound = errors.New("active order not found")
)
