package wire

// Result represents a response result code.
type Result uint8

const (
	// ResultSuccessful indicates the snapshot or subscription request
	// completed successfully.
	ResultSuccessful Result = 0

	// ResultNewConnectionSuccess indicates the handshake was accepted.
	ResultNewConnectionSuccess Result = 1

	// ResultNotAuthorized indicates the handshake was rejected. The
	// connection is closed after this result is sent.
	ResultNotAuthorized Result = 2

	// ResultNotAvailable indicates the requested specification key is not
	// recognized as valid live data. Recoverable: the connection and other
	// subscriptions are unaffected.
	ResultNotAvailable Result = 3

	// ResultInternalError indicates the server could not service the
	// request for a reason unrelated to the request itself.
	ResultInternalError Result = 4
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultSuccessful:
		return "SUCCESSFUL"
	case ResultNewConnectionSuccess:
		return "NEW_CONNECTION_SUCCESS"
	case ResultNotAuthorized:
		return "NOT_AUTHORIZED"
	case ResultNotAvailable:
		return "NOT_AVAILABLE"
	case ResultInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess reports whether the result indicates success.
func (r Result) IsSuccess() bool {
	return r == ResultSuccessful || r == ResultNewConnectionSuccess
}
