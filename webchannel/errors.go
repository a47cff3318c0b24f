package webchannel

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTransport is returned by New when no transport is given.
	ErrNoTransport = errors.New("webchannel expects a transport with a send function")

	// ErrMalformedMessage is returned for inbound payloads that cannot be
	// decoded, carry an unknown type, or miss a required field.
	ErrMalformedMessage = errors.New("invalid message received")

	// ErrUnexpectedMessage is returned for inbound messages of a kind that
	// only this side is supposed to send.
	ErrUnexpectedMessage = errors.New("unexpected message type received")

	// ErrInvalidCallback is returned when a listener or completion callback
	// is not a non-nil func.
	ErrInvalidCallback = errors.New("bad callback given")

	// ErrNotConnected is returned by Disconnect for connections that are not
	// currently registered on the signal.
	ErrNotConnected = errors.New("cannot find connection of signal")

	// ErrUnknownMethod is returned by Invoke and Call for methods missing from
	// the object's descriptor.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrUnknownProperty is returned for properties missing from the object's
	// descriptor.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUndefinedProperty is returned by ReadProperty when the property has
	// neither a pushed value nor an initial value.
	ErrUndefinedProperty = errors.New("property has no value")

	// ErrClosed is returned when sending on a closed transport.
	ErrClosed = errors.New("transport closed")
)

// ProtocolError is returned when the peer answers a request id that has no
// pending call.
type ProtocolError struct {
	ID   int
	Type MessageType
}

func (err *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation: %s message for unknown request id %d", err.Type, err.ID)
}

// ErrInitFailed is returned by WaitReady when the init response could not be
// turned into objects.
type ErrInitFailed struct {
	Cause error
}

func (err ErrInitFailed) Error() string {
	return fmt.Sprintf("webchannel init failed: %s", err.Cause)
}

func (err ErrInitFailed) Unwrap() error {
	return err.Cause
}
