package gateway

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendBufferFull   = errors.New("connection send buffer is full")
	ErrInvalidPayload   = errors.New("payload cannot be encoded")
)
