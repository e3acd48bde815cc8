package protocol

import "errors"

var (
	ErrTruncated     = errors.New("protocol: truncated data")
	ErrNotData       = errors.New("protocol: control pdu on data bearer")
	ErrSNOutOfRange  = errors.New("protocol: sequence number out of range")
	ErrShortBuffer   = errors.New("protocol: destination shorter than header")
	ErrUnknownFormat = errors.New("protocol: unknown header format")
)
