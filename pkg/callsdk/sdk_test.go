package callsdk_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicare/callsdk/internal/adapters/bootstrap"
	"github.com/cicare/callsdk/internal/adapters/signal"
	"github.com/cicare/callsdk/internal/adapters/telephony"
	"github.com/cicare/callsdk/internal/config"
	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/devserver"
	"github.com/cicare/callsdk/internal/domain"
	"github.com/cicare/callsdk/pkg/callsdk"
)

var participants = callsdk.Participants{
	CallerID: "alice", CallerName: "Alice",
	CalleeID: "bob", CalleeName: "Bob",
}

// stubEngine answers negotiation calls with canned descriptions and
// lets the test drive connection state.
type stubEngine struct {
	mu      sync.Mutex
	sdp     string
	remotes []domain.SessionDescription
	onState func(core.EngineState)
}

func (e *stubEngine) CreateOffer() (domain.SessionDescription, error) {
	return domain.SessionDescription{Type: "offer", SDP: e.sdp}, nil
}

func (e *stubEngine) CreateAnswer() (domain.SessionDescription, error) {
	return domain.SessionDescription{Type: "answer", SDP: e.sdp}, nil
}

func (e *stubEngine) SetRemoteDescription(desc domain.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remotes = append(e.remotes, desc)
	return nil
}

func (e *stubEngine) AddCandidate(domain.Candidate) error { return nil }
func (e *stubEngine) Close() error                        { return nil }

func (e *stubEngine) OnCandidate(func(domain.Candidate)) {}
func (e *stubEngine) OnStateChange(fn func(core.EngineState)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}
func (e *stubEngine) OnQuality(func(domain.NetworkQuality)) {}
func (e *stubEngine) OnRemoteTrack(func(core.RemoteTrack))  {}

func (e *stubEngine) fireConnected() {
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(core.EngineConnected)
	}
}

func (e *stubEngine) remoteSDPs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.remotes))
	for i, d := range e.remotes {
		out[i] = d.SDP
	}
	return out
}

type stubBootstrap struct {
	grant domain.SessionGrant
}

func (b stubBootstrap) RequestSession(context.Context, domain.Participants, string) (domain.SessionGrant, error) {
	return b.grant, nil
}

type stubTransport struct{ sink core.SignalSink }

func (t *stubTransport) Connect(context.Context, string, string) error { return nil }
func (t *stubTransport) Send(string, any) error                        { return nil }
func (t *stubTransport) Disconnect()                                   {}

func stubDeps(engine *stubEngine) callsdk.Deps {
	return callsdk.Deps{
		Bootstrap:    stubBootstrap{grant: domain.SessionGrant{Server: "http://sig.test", Token: "t"}},
		NewTransport: func(sink core.SignalSink) core.Transport { return &stubTransport{sink: sink} },
		NewEngine:    func() (core.MediaEngine, error) { return engine, nil },
		Reporter:     telephony.NewLogReporter(),
		Notifier:     telephony.NewLogNotifier(),
	}
}

func TestSingleActiveCall(t *testing.T) {
	sdk := callsdk.NewWithDeps(&config.Config{}, stubDeps(&stubEngine{sdp: "v=0"}))

	first, err := sdk.Outgoing(context.Background(), participants, "sum", nil)
	require.NoError(t, err)

	_, err = sdk.Outgoing(context.Background(), participants, "sum", nil)
	assert.ErrorIs(t, err, callsdk.ErrCallInProgress)
	_, err = sdk.Incoming(context.Background(), participants, callsdk.SessionGrant{Server: "s", Token: "t"}, nil)
	assert.ErrorIs(t, err, callsdk.ErrCallInProgress)

	active, ok := sdk.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID(), active.ID())

	require.NoError(t, first.End())
	<-first.Done()

	// The slot frees on termination.
	_, ok = sdk.Active()
	assert.False(t, ok)
	second, err := sdk.Outgoing(context.Background(), participants, "sum", nil)
	require.NoError(t, err)
	require.NoError(t, second.End())
	<-second.Done()
}

func TestOutgoingWithReentrantNotifier(t *testing.T) {
	var sdk *callsdk.SDK
	sawActive := make(chan bool, 8)
	deps := stubDeps(&stubEngine{sdp: "v=0"})
	deps.Notifier = callsdk.NotifierFuncs{
		OnStatus: func(uuid.UUID, callsdk.CallStatus) {
			// A UI fetching the session from a status callback.
			_, ok := sdk.Active()
			select {
			case sawActive <- ok:
			default:
			}
		},
	}
	sdk = callsdk.NewWithDeps(&config.Config{}, deps)

	type result struct {
		sess *callsdk.Session
		err  error
	}
	res := make(chan result, 1)
	go func() {
		s, err := sdk.Outgoing(context.Background(), participants, "sum", nil)
		res <- result{sess: s, err: err}
	}()

	var sess *callsdk.Session
	select {
	case r := <-res:
		require.NoError(t, r.err)
		sess = r.sess
	case <-time.After(2 * time.Second):
		t.Fatal("Outgoing blocked on a notifier that re-enters the SDK")
	}

	select {
	case ok := <-sawActive:
		assert.True(t, ok, "session visible to the re-entrant callback")
	case <-time.After(2 * time.Second):
		t.Fatal("initial status never emitted")
	}

	require.NoError(t, sess.End())
	<-sess.Done()
}

// upSink decorates a session sink so the test can observe the
// transport coming up.
type upSink struct {
	core.SignalSink
	up chan struct{}
}

func (s *upSink) OnTransportUp() {
	select {
	case s.up <- struct{}{}:
	default:
	}
	s.SignalSink.OnTransportUp()
}

func signalFactory(up chan struct{}) func(core.SignalSink) core.Transport {
	cfg := signal.DefaultConfig()
	cfg.Backoff = 10 * time.Millisecond
	return func(sink core.SignalSink) core.Transport {
		return signal.NewClient(cfg, &upSink{SignalSink: sink, up: up})
	}
}

// TestEndToEndCallOverDevServer runs both legs of a call in one
// process against the loopback gateway: real bootstrap, real WebSocket
// signaling, stub media engines.
func TestEndToEndCallOverDevServer(t *testing.T) {
	ts := httptest.NewServer(devserver.New().Router())
	defer ts.Close()

	ctx := context.Background()

	calleeEngine := &stubEngine{sdp: "v=0 callee-answer"}
	calleeUp := make(chan struct{}, 1)
	calleeSDK := callsdk.NewWithDeps(&config.Config{}, callsdk.Deps{
		Bootstrap:    stubBootstrap{},
		NewTransport: signalFactory(calleeUp),
		NewEngine:    func() (core.MediaEngine, error) { return calleeEngine, nil },
		Reporter:     telephony.NewLogReporter(),
		Notifier:     telephony.NewLogNotifier(),
	})

	grant := callsdk.SessionGrant{Server: ts.URL + "/ws/signal", Token: "callee-leg"}
	callee, err := calleeSDK.Incoming(ctx, participants, grant, nil)
	require.NoError(t, err)
	require.NoError(t, callee.Answer())

	// The callee leg must be on the wire before the caller offers,
	// the gateway does not buffer.
	select {
	case <-calleeUp:
	case <-time.After(2 * time.Second):
		t.Fatal("callee transport never connected")
	}

	callerEngine := &stubEngine{sdp: "v=0 caller-offer"}
	callerUp := make(chan struct{}, 1)
	callerSDK := callsdk.NewWithDeps(&config.Config{}, callsdk.Deps{
		Bootstrap:    bootstrap.NewClient(bootstrap.Config{BaseURL: ts.URL}),
		NewTransport: signalFactory(callerUp),
		NewEngine:    func() (core.MediaEngine, error) { return callerEngine, nil },
		Reporter:     telephony.NewLogReporter(),
		Notifier:     telephony.NewLogNotifier(),
	})

	caller, err := callerSDK.Outgoing(ctx, participants, "sum", nil)
	require.NoError(t, err)

	// Offer crosses the gateway, the callee answers automatically.
	require.Eventually(t, func() bool {
		sdps := calleeEngine.remoteSDPs()
		return len(sdps) == 1 && sdps[0] == "v=0 caller-offer"
	}, 5*time.Second, 10*time.Millisecond, "offer never reached the callee engine")

	// The gateway turns the answer into ACCEPTED for the caller.
	require.Eventually(t, func() bool {
		return caller.Status() == domain.StatusConnected
	}, 5*time.Second, 10*time.Millisecond, "caller never connected")
	require.Eventually(t, func() bool {
		sdps := callerEngine.remoteSDPs()
		return len(sdps) == 1 && sdps[0] == "v=0 callee-answer"
	}, 5*time.Second, 10*time.Millisecond, "answer never reached the caller engine")

	calleeEngine.fireConnected()
	require.Eventually(t, func() bool {
		return callee.Status() == domain.StatusConnected
	}, 5*time.Second, 10*time.Millisecond, "callee never connected")

	// Hanging up one leg tears down the other through the gateway.
	require.NoError(t, caller.End())
	<-caller.Done()
	select {
	case <-callee.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("callee never saw the hangup")
	}
	assert.NoError(t, callee.Err())

	_, ok := callerSDK.Active()
	assert.False(t, ok)
	_, ok = calleeSDK.Active()
	assert.False(t, ok)
}
