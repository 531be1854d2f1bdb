package codec

import "errors"

var (
	ErrTruncated        = errors.New("codec: truncated data")
	ErrTrailingData     = errors.New("codec: trailing data after last field")
	ErrUnknownMessageID = errors.New("codec: unknown message id")
	ErrInvalidBool      = errors.New("codec: invalid bool value")
	ErrInvalidText      = errors.New("codec: text is not valid UTF-8")
)
