package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

type sessState int

const (
	stateInitializing sessState = iota
	stateIncoming
	stateConnecting
	stateConnected
	stateEnded
)

func (s sessState) String() string {
	switch s {
	case stateInitializing:
		return "initializing"
	case stateIncoming:
		return "incoming"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Deps are the collaborators a session needs. Transport and engine are
// created lazily so a declined incoming call never touches either.
type Deps struct {
	Bootstrap    core.Bootstrapper
	NewTransport func(core.SignalSink) core.Transport
	NewEngine    func() (core.MediaEngine, error)
	Reporter     core.TelephonyReporter
	Notifier     core.Notifier
	// OnEnded runs after the terminal transition, once per session.
	OnEnded func(uuid.UUID)
}

// Session owns one call's lifecycle. All state transitions happen on a
// single goroutine consuming the event queue; transport and engine
// callbacks only enqueue. Once the terminal state is reached the queue
// is drained and every later event is discarded.
type Session struct {
	log  zerolog.Logger
	deps Deps

	participants domain.Participants
	checkSum     string

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	// Owned by the apply loop.
	state     sessState
	grant     domain.SessionGrant
	transport core.Transport
	coord     *Coordinator
	held      bool

	mu      sync.RWMutex
	call    *domain.CallSession
	failure error
}

func newSession(ctx context.Context, deps Deps, p domain.Participants, checkSum string, role domain.Role, metadata map[string]string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	call := domain.NewCallSession(role, p, metadata)
	return &Session{
		log:          log.With().Str("module", "session").Str("call_id", call.ID.String()).Logger(),
		deps:         deps,
		participants: p,
		checkSum:     checkSum,
		ctx:          ctx,
		cancel:       cancel,
		events:       make(chan event, 64),
		done:         make(chan struct{}),
		call:         call,
	}
}

// StartOutgoing creates a caller-side session: it reports the outgoing
// call, kicks off bootstrap and returns immediately. The initial
// report and notifications are delivered from the apply loop, so a
// notifier may safely call back into the SDK.
func StartOutgoing(ctx context.Context, deps Deps, p domain.Participants, checkSum string, metadata map[string]string) *Session {
	s := newSession(ctx, deps, p, checkSum, domain.RoleCaller, metadata)
	s.state = stateInitializing
	s.events <- evAnnounce{}
	go s.run()
	go s.runBootstrap()
	return s
}

// StartIncoming creates a callee-side session from an incoming-call
// report. The signaling grant arrives with the report; nothing connects
// until the native answer command.
func StartIncoming(ctx context.Context, deps Deps, p domain.Participants, grant domain.SessionGrant, metadata map[string]string) *Session {
	s := newSession(ctx, deps, p, "", domain.RoleCallee, metadata)
	s.state = stateIncoming
	s.grant = grant
	s.events <- evAnnounce{}
	go s.run()
	return s
}

// ID returns the call identifier.
func (s *Session) ID() uuid.UUID { return s.call.ID }

// Status returns the current user-visible status.
func (s *Session) Status() domain.CallStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.call.Status
}

// Call returns a snapshot of the call session. The metadata map is
// shared and must be treated as read-only.
func (s *Session) Call() domain.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.call
}

// Done is closed when the session reaches its terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports the failure reason, nil for a normally ended call.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// Answer accepts an incoming call and starts negotiation.
func (s *Session) Answer() error { return s.command(cmdAnswer, false) }

// End terminates the call from the local side.
func (s *Session) End() error { return s.command(cmdEnd, false) }

// SetHold toggles hold on an established call.
func (s *Session) SetHold(hold bool) error { return s.command(cmdHold, hold) }

func (s *Session) command(kind cmdKind, hold bool) error {
	reply := make(chan error, 1)
	select {
	case s.events <- evCommand{kind: kind, hold: hold, reply: reply}:
	case <-s.ctx.Done():
		return core.ErrCallEnded
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		// The session may have replied in the same pass that ended it.
		select {
		case err := <-reply:
			return err
		default:
			return core.ErrCallEnded
		}
	}
}

func (s *Session) runBootstrap() {
	grant, err := s.deps.Bootstrap.RequestSession(s.ctx, s.participants, s.checkSum)
	s.post(evBootstrap{grant: grant, err: err})
}

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// SignalSink: transport callbacks enqueue into the apply loop.

func (s *Session) OnTransportUp() { s.post(evTransportUp{}) }
func (s *Session) OnTransportDown(err error, fatal bool) {
	s.post(evTransportDown{err: err, fatal: fatal})
}
func (s *Session) OnRinging()  { s.post(evRinging{}) }
func (s *Session) OnAccepted() { s.post(evAccepted{}) }
func (s *Session) OnHangup()   { s.post(evHangup{}) }
func (s *Session) OnRemoteOffer(desc domain.SessionDescription) {
	s.post(evRemoteOffer{desc: desc})
}
func (s *Session) OnRemoteAnswer(desc domain.SessionDescription) {
	s.post(evRemoteAnswer{desc: desc})
}
func (s *Session) OnRemoteCandidate(c domain.Candidate) { s.post(evRemoteCandidate{cand: c}) }

func (s *Session) run() {
	for {
		select {
		case ev := <-s.events:
			s.apply(ev)
		case <-s.ctx.Done():
			s.end(s.ctx.Err(), false)
			s.drainCommands()
			return
		}
	}
}

// drainCommands answers queued commands after termination so callers
// never hang on a dead session.
func (s *Session) drainCommands() {
	for {
		select {
		case ev := <-s.events:
			if cmd, ok := ev.(evCommand); ok {
				cmd.reply <- core.ErrCallEnded
			}
		default:
			return
		}
	}
}

func (s *Session) apply(ev event) {
	if s.state == stateEnded {
		if cmd, ok := ev.(evCommand); ok {
			cmd.reply <- core.ErrCallEnded
		}
		return
	}

	switch ev := ev.(type) {
	case evAnnounce:
		s.announce()
	case evBootstrap:
		s.applyBootstrap(ev)
	case evTransportUp:
		s.applyTransportUp()
	case evTransportDown:
		if ev.fatal {
			s.fail(&core.TransportError{Op: "reconnect", Err: ev.err})
		} else {
			s.log.Warn().Err(ev.err).Msg("transport dropped, reconnecting")
		}
	case evRinging:
		if s.state == stateConnecting && s.call.Role == domain.RoleCaller {
			s.setStatus(domain.StatusRinging)
		}
	case evAccepted:
		if s.state == stateConnecting {
			s.connected()
		}
	case evHangup:
		s.end(nil, false)
	case evRemoteOffer:
		s.applyRemoteOffer(ev.desc)
	case evRemoteAnswer:
		s.applyRemoteAnswer(ev.desc)
	case evRemoteCandidate:
		if s.coord == nil {
			s.log.Warn().Msg("candidate before negotiation, dropped")
			return
		}
		if err := s.coord.AddRemoteCandidate(ev.cand); err != nil {
			s.log.Warn().Err(err).Msg("add remote candidate")
		}
	case evLocalCandidate:
		s.sendSignal(domain.EventICECandidate, domain.CandidatePayload{
			Candidate:     ev.cand.Candidate,
			SDPMid:        ev.cand.SDPMid,
			SDPMLineIndex: ev.cand.SDPMLineIndex,
		})
	case evEngineState:
		s.applyEngineState(ev.state)
	case evQuality:
		s.deps.Notifier.NetworkQualityChanged(s.call.ID, ev.level)
	case evRemoteTrack:
		s.deps.Notifier.RemoteStream(s.call.ID, ev.track)
	case evCommand:
		s.applyCommand(ev)
	}
}

// announce is always the first event on the queue; the status it
// reports is the session's initial one.
func (s *Session) announce() {
	if s.call.Role == domain.RoleCaller {
		s.deps.Reporter.ReportOutgoingStarted(s.call.ID)
	} else {
		s.deps.Reporter.ReportIncomingCall(s.call.ID, s.call.PeerHandle, s.call.PeerDisplayName)
	}
	s.deps.Notifier.ProfileSet(s.call.ID, s.call.PeerDisplayName, s.call.PeerAvatarRef)
	s.deps.Notifier.StatusChanged(s.call.ID, s.call.Status)
}

func (s *Session) applyBootstrap(ev evBootstrap) {
	if s.state != stateInitializing {
		return
	}
	if ev.err != nil {
		s.fail(ev.err)
		return
	}
	s.grant = ev.grant
	s.connectTransport()
}

func (s *Session) connectTransport() {
	s.transport = s.deps.NewTransport(s)
	if err := s.transport.Connect(s.ctx, s.grant.Server, s.grant.Token); err != nil {
		s.fail(&core.TransportError{Op: "connect", Err: err})
	}
}

func (s *Session) applyTransportUp() {
	switch s.state {
	case stateInitializing:
		// Caller: signaling is up, produce and send the offer.
		s.state = stateConnecting
		s.setStatus(domain.StatusCalling)
		s.startCallerNegotiation()
	case stateConnecting:
		// Callee after answer: wait for the remote offer.
	case stateConnected:
		// Reconnect under an established call; no new notification.
		s.log.Info().Msg("transport reconnected")
	}
}

func (s *Session) startCallerNegotiation() {
	if !s.ensureCoordinator() {
		return
	}
	offer, err := s.coord.CreateOffer()
	if err != nil {
		s.fail(err)
		return
	}
	s.sendSignal(domain.EventInitCall, domain.InitCallPayload{IsCaller: true, SDP: offer})
}

func (s *Session) ensureCoordinator() bool {
	if s.coord != nil {
		return true
	}
	engine, err := s.deps.NewEngine()
	if err != nil {
		s.fail(&core.NegotiationError{Op: "engine", Err: err})
		return false
	}
	s.coord = NewCoordinator(engine)
	s.coord.OnLocalCandidate(func(c domain.Candidate) { s.post(evLocalCandidate{cand: c}) })
	s.coord.OnStateChange(func(st core.EngineState) { s.post(evEngineState{state: st}) })
	s.coord.OnQuality(func(q domain.NetworkQuality) { s.post(evQuality{level: q}) })
	s.coord.OnRemoteTrack(func(t core.RemoteTrack) { s.post(evRemoteTrack{track: t}) })
	return true
}

func (s *Session) applyRemoteOffer(desc domain.SessionDescription) {
	if s.state != stateConnecting || s.call.Role != domain.RoleCallee {
		s.log.Warn().Str("state", s.state.String()).Msg("unexpected remote offer")
		return
	}
	if !s.ensureCoordinator() {
		return
	}
	s.setStatus(domain.StatusConnecting)
	answer, err := s.coord.ApplyRemoteOffer(desc)
	if err != nil {
		s.fail(err)
		return
	}
	s.sendSignal(domain.EventSDPAnswer, domain.SDPPayload{SDP: answer.SDP})
}

func (s *Session) applyRemoteAnswer(desc domain.SessionDescription) {
	if s.state != stateConnecting || s.coord == nil {
		s.log.Warn().Str("state", s.state.String()).Msg("unexpected remote answer")
		return
	}
	if err := s.coord.ApplyRemoteAnswer(desc); err != nil {
		s.fail(err)
	}
}

func (s *Session) applyEngineState(st core.EngineState) {
	switch st {
	case core.EngineConnected:
		if s.state == stateConnecting {
			s.connected()
		}
	case core.EngineFailed:
		s.fail(&core.NegotiationError{Op: "engine", Err: core.ErrEngineUnavailable})
	case core.EngineDisconnected:
		s.log.Warn().Msg("engine disconnected")
	}
}

func (s *Session) applyCommand(cmd evCommand) {
	switch cmd.kind {
	case cmdAnswer:
		if s.state != stateIncoming {
			cmd.reply <- core.ErrInvalidState
			return
		}
		s.state = stateConnecting
		s.connectTransport()
		cmd.reply <- nil
	case cmdEnd:
		cmd.reply <- nil
		s.end(nil, true)
	case cmdHold:
		if s.state != stateConnected {
			cmd.reply <- core.ErrInvalidState
			return
		}
		if s.held != cmd.hold {
			s.held = cmd.hold
			s.deps.Notifier.HoldChanged(s.call.ID, cmd.hold)
		}
		cmd.reply <- nil
	}
}

func (s *Session) connected() {
	s.state = stateConnected
	s.setStatus(domain.StatusConnected)
	s.deps.Reporter.ReportConnected(s.call.ID)
}

func (s *Session) sendSignal(event string, payload any) {
	if s.transport == nil {
		return
	}
	if err := s.transport.Send(event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("send signal")
	}
}

// setStatus updates the call first and notifies after, so observers
// never see a stale status.
func (s *Session) setStatus(st domain.CallStatus) {
	s.mu.Lock()
	s.call.Status = st
	s.mu.Unlock()
	s.deps.Notifier.StatusChanged(s.call.ID, st)
}

func (s *Session) fail(reason error) {
	s.log.Error().Err(reason).Msg("call failed")
	s.end(reason, false)
}

// end performs the terminal transition exactly once. sendHangup tells
// the peer we are leaving; it is false when the peer already hung up.
func (s *Session) end(reason error, sendHangup bool) {
	if s.state == stateEnded {
		return
	}
	s.state = stateEnded
	s.mu.Lock()
	s.call.Status = domain.StatusEnded
	s.call.EndedAt = time.Now()
	s.failure = reason
	s.mu.Unlock()

	if sendHangup && s.transport != nil {
		if err := s.transport.Send(domain.EventHangup, nil); err != nil {
			s.log.Warn().Err(err).Msg("send hangup")
		}
	}
	if s.coord != nil {
		s.coord.Close()
	}
	if s.transport != nil {
		s.transport.Disconnect()
	}

	s.deps.Notifier.StatusChanged(s.call.ID, domain.StatusEnded)
	s.deps.Reporter.ReportEnded(s.call.ID)
	if s.deps.OnEnded != nil {
		s.deps.OnEnded(s.call.ID)
	}
	close(s.done)
	s.cancel()
}
