// Package callsdk is the public surface of the call SDK: entry points
// for outgoing and incoming calls, a single-slot active call guard and
// re-exports of the types consumers need.
package callsdk

import (
	"context"

	"github.com/google/uuid"

	"github.com/cicare/callsdk/internal/adapters/bootstrap"
	"github.com/cicare/callsdk/internal/adapters/rtc"
	"github.com/cicare/callsdk/internal/adapters/signal"
	"github.com/cicare/callsdk/internal/adapters/telephony"
	"github.com/cicare/callsdk/internal/app"
	"github.com/cicare/callsdk/internal/config"
	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

// Re-exported types so consumers outside the module can name them.
type (
	Session        = app.Session
	Participants   = domain.Participants
	SessionGrant   = domain.SessionGrant
	CallStatus     = domain.CallStatus
	NetworkQuality = domain.NetworkQuality

	Notifier          = core.Notifier
	TelephonyReporter = core.TelephonyReporter
	// NotifierFuncs adapts plain callbacks to the Notifier port.
	NotifierFuncs = telephony.NotifierFuncs
)

var (
	ErrCallInProgress = core.ErrCallInProgress
	ErrCallEnded      = core.ErrCallEnded
)

// Deps lets integrators replace the default collaborators: a platform
// telephony binding, a UI notifier, or (in tests) fake transport and
// engine implementations.
type Deps struct {
	Bootstrap    core.Bootstrapper
	NewTransport func(core.SignalSink) core.Transport
	NewEngine    func() (core.MediaEngine, error)
	Reporter     core.TelephonyReporter
	Notifier     core.Notifier
}

type SDK struct {
	cfg   *config.Config
	deps  Deps
	guard *app.Guard
}

// New wires the SDK with the production adapters: HTTP bootstrap,
// WebSocket signaling, pion media engine and logging notifiers.
func New(cfg *config.Config) *SDK {
	return NewWithDeps(cfg, Deps{})
}

// NewWithDeps fills any nil dependency with its production default.
func NewWithDeps(cfg *config.Config, deps Deps) *SDK {
	if deps.Bootstrap == nil {
		deps.Bootstrap = bootstrap.NewClient(bootstrap.Config{
			BaseURL: cfg.APIBaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.RequestTimeout,
		})
	}
	if deps.NewTransport == nil {
		signalCfg := signal.Config{
			QueueSize:        cfg.SignalQueueSize,
			MaxReconnects:    cfg.MaxReconnects,
			Backoff:          cfg.ReconnectBackoff,
			WriteTimeout:     cfg.WriteTimeout,
			HandshakeTimeout: cfg.RequestTimeout,
		}
		deps.NewTransport = func(sink core.SignalSink) core.Transport {
			return signal.NewClient(signalCfg, sink)
		}
	}
	if deps.NewEngine == nil {
		deps.NewEngine = func() (core.MediaEngine, error) {
			return rtc.NewEngine(rtc.DefaultWebRTCConfig())
		}
	}
	if deps.Reporter == nil {
		deps.Reporter = telephony.NewLogReporter()
	}
	if deps.Notifier == nil {
		deps.Notifier = telephony.NewLogNotifier()
	}
	return &SDK{cfg: cfg, deps: deps, guard: app.NewGuard()}
}

// Outgoing starts a caller-side call. It returns ErrCallInProgress
// when another call is still active.
func (s *SDK) Outgoing(ctx context.Context, p Participants, checkSum string, metadata map[string]string) (*Session, error) {
	return s.guard.Start(func(onEnded func(uuid.UUID)) *app.Session {
		return app.StartOutgoing(ctx, s.sessionDeps(onEnded), p, checkSum, metadata)
	})
}

// Incoming reports an incoming call delivered out of band (push). The
// grant carries the signaling server and token for when the callee
// answers.
func (s *SDK) Incoming(ctx context.Context, p Participants, grant SessionGrant, metadata map[string]string) (*Session, error) {
	return s.guard.Start(func(onEnded func(uuid.UUID)) *app.Session {
		return app.StartIncoming(ctx, s.sessionDeps(onEnded), p, grant, metadata)
	})
}

// Active returns the call in progress, if any.
func (s *SDK) Active() (*Session, bool) {
	return s.guard.Active()
}

func (s *SDK) sessionDeps(onEnded func(uuid.UUID)) app.Deps {
	return app.Deps{
		Bootstrap:    s.deps.Bootstrap,
		NewTransport: s.deps.NewTransport,
		NewEngine:    s.deps.NewEngine,
		Reporter:     s.deps.Reporter,
		Notifier:     s.deps.Notifier,
		OnEnded:      onEnded,
	}
}
