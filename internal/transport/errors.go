package transport

import "errors"

var (
	// ErrPayloadTooLarge is returned by Send when the payload exceeds
	// the 1 GiB ceiling.
	ErrPayloadTooLarge = errors.New("transport: payload exceeds 1 GiB limit")

	// ErrEmptyPayload is returned by Send for a zero-length payload.
	ErrEmptyPayload = errors.New("transport: payload is empty")
)
