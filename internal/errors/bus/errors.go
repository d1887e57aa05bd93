package bus

import "errors"

var (
	ErrBusClosed = errors.New("event bus is closed")
)
