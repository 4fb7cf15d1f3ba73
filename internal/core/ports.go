package core

import (
	"context"

	"github.com/google/uuid"

	"github.com/cicare/callsdk/internal/domain"
)

// RemoteTrack is an opaque handle to remote media; the core forwards it
// to the presentation layer without inspecting it.
type RemoteTrack any

// EngineState is the media engine's connection state.
type EngineState int

const (
	EngineNew EngineState = iota
	EngineConnecting
	EngineConnected
	EngineDisconnected
	EngineFailed
	EngineClosed
)

func (s EngineState) String() string {
	switch s {
	case EngineNew:
		return "new"
	case EngineConnecting:
		return "connecting"
	case EngineConnected:
		return "connected"
	case EngineDisconnected:
		return "disconnected"
	case EngineFailed:
		return "failed"
	case EngineClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaEngine is the capability surface the core needs from the media
// stack: produce a local description, consume a remote one, accept
// candidates, report state. Implemented by adapters/rtc in production
// and by fakes in tests. Callbacks may fire on the engine's own
// goroutines; the engine must not be re-entered from them.
type MediaEngine interface {
	CreateOffer() (domain.SessionDescription, error)
	CreateAnswer() (domain.SessionDescription, error)
	SetRemoteDescription(domain.SessionDescription) error
	AddCandidate(domain.Candidate) error
	Close() error

	OnCandidate(func(domain.Candidate))
	OnStateChange(func(EngineState))
	OnQuality(func(domain.NetworkQuality))
	OnRemoteTrack(func(RemoteTrack))
}

// TransportState is the signaling connection state.
type TransportState int

const (
	TransportDisconnected TransportState = iota
	TransportConnecting
	TransportConnected
)

func (s TransportState) String() string {
	switch s {
	case TransportDisconnected:
		return "disconnected"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transport is one authenticated signaling channel. Connect is
// asynchronous: progress is reported through the SignalSink given to
// the transport at construction, never by blocking the caller.
type Transport interface {
	Connect(ctx context.Context, endpoint, token string) error
	Send(event string, payload any) error
	Disconnect()
}

// SignalSink is the internal event vocabulary the transport translates
// inbound wire traffic into. The session state machine implements it by
// queueing events; implementations must be safe for concurrent calls.
type SignalSink interface {
	OnTransportUp()
	// OnTransportDown reports a drop. fatal means the reconnect budget
	// is exhausted (or the failure is not recoverable) and the call
	// cannot continue on this transport.
	OnTransportDown(err error, fatal bool)

	OnRinging()
	OnAccepted()
	OnHangup()
	OnRemoteOffer(desc domain.SessionDescription)
	OnRemoteAnswer(desc domain.SessionDescription)
	OnRemoteCandidate(c domain.Candidate)
}

// Bootstrapper obtains signaling connection parameters for a new
// outgoing call. One shot, no retries.
type Bootstrapper interface {
	RequestSession(ctx context.Context, p domain.Participants, checkSum string) (domain.SessionGrant, error)
}

// TelephonyReporter pushes call state into the platform telephony
// facility (system call UI, interruption priority).
type TelephonyReporter interface {
	ReportIncomingCall(id uuid.UUID, handle, displayName string)
	ReportOutgoingStarted(id uuid.UUID)
	ReportConnected(id uuid.UUID)
	ReportEnded(id uuid.UUID)
}

// Notifier receives status, profile and network-quality updates for the
// presentation layer. Called only after the session state is already
// updated, never from inside a transition.
type Notifier interface {
	StatusChanged(callID uuid.UUID, status domain.CallStatus)
	ProfileSet(callID uuid.UUID, name, avatarRef string)
	NetworkQualityChanged(callID uuid.UUID, level domain.NetworkQuality)
	HoldChanged(callID uuid.UUID, held bool)
	RemoteStream(callID uuid.UUID, track RemoteTrack)
}
