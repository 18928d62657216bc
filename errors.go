package graphqllink

import "go.trai.ch/zerr"

var (
	// ErrUnclassifiable is returned when a document has no operation definition to route on.
	ErrUnclassifiable = zerr.New("operation kind cannot be determined")

	// ErrWrongRoute is returned when an operation is submitted through an entry point
	// that does not serve its transport, e.g. a subscription passed to Execute.
	ErrWrongRoute = zerr.New("operation belongs to a different transport")

	// ErrTransport is returned when a request could not be carried to the server or
	// its reply could not be understood.
	ErrTransport = zerr.New("transport failure")

	// ErrConnectionLost terminates subscription streams when the shared connection
	// drops and is not re-established.
	ErrConnectionLost = zerr.New("websocket connection lost")

	// ErrClosed is returned by a transport after Close.
	ErrClosed = zerr.New("transport closed")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = zerr.New("invalid configuration")
)
