package envelope

import "errors"

var (
	// ErrProtocol is returned for any malformed envelope framing.
	ErrProtocol = errors.New("malformed envelope")

	// ErrUnsupportedVersion is returned when the envelope version is not understood.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")

	// ErrUnknownAlgorithm is returned when the algorithm tag is unknown.
	ErrUnknownAlgorithm = errors.New("unknown algorithm tag")

	// ErrInvalidNonceSize is returned when the IV length does not match the algorithm tag.
	ErrInvalidNonceSize = errors.New("iv length does not match algorithm")

	// ErrTooLarge is returned when an encoded envelope exceeds MaxSize.
	ErrTooLarge = errors.New("envelope too large")
)
