package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCallInProgress is returned when a second call is requested
	// while one is still active.
	ErrCallInProgress = errors.New("a call is already in progress")
	// ErrCallEnded is returned for commands delivered after the call
	// reached its terminal state.
	ErrCallEnded = errors.New("call already ended")
	// ErrInvalidState rejects an operation that is not legal in the
	// current negotiation or session state.
	ErrInvalidState = errors.New("invalid state")
	// ErrEngineUnavailable means the media engine cannot provide the
	// requested capability.
	ErrEngineUnavailable = errors.New("media engine unavailable")
	// ErrQueueFull means the outbound signaling queue cannot take a
	// critical message.
	ErrQueueFull = errors.New("send queue full")
	// ErrReconnectExhausted means the transport ran out of reconnect
	// attempts.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// BootstrapError wraps a failure of the session bootstrap call.
type BootstrapError struct {
	Op  string // "request", "status", "decode"
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Op, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// TransportError wraps a signaling transport failure.
type TransportError struct {
	Op  string // "connect", "send", "reconnect"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NegotiationError wraps a media negotiation failure.
type NegotiationError struct {
	Op  string // "offer", "answer", "remote", "candidate"
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
