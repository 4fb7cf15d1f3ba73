package app_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

type fakeEngine struct {
	mu       sync.Mutex
	offerErr error

	offerCalls  int
	remoteDescs []domain.SessionDescription
	cands       []domain.Candidate
	closes      int

	onCandidate func(domain.Candidate)
	onState     func(core.EngineState)
	onQuality   func(domain.NetworkQuality)
	onTrack     func(core.RemoteTrack)
}

func newFakeEngine() *fakeEngine { return &fakeEngine{} }

func (f *fakeEngine) CreateOffer() (domain.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return domain.SessionDescription{}, f.offerErr
	}
	f.offerCalls++
	return domain.SessionDescription{Type: "offer", SDP: "local-offer"}, nil
}

func (f *fakeEngine) CreateAnswer() (domain.SessionDescription, error) {
	return domain.SessionDescription{Type: "answer", SDP: "local-answer"}, nil
}

func (f *fakeEngine) SetRemoteDescription(desc domain.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteDescs = append(f.remoteDescs, desc)
	return nil
}

func (f *fakeEngine) AddCandidate(c domain.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cands = append(f.cands, c)
	return nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeEngine) OnCandidate(fn func(domain.Candidate)) {
	f.mu.Lock()
	f.onCandidate = fn
	f.mu.Unlock()
}

func (f *fakeEngine) OnStateChange(fn func(core.EngineState)) {
	f.mu.Lock()
	f.onState = fn
	f.mu.Unlock()
}

func (f *fakeEngine) OnQuality(fn func(domain.NetworkQuality)) {
	f.mu.Lock()
	f.onQuality = fn
	f.mu.Unlock()
}

func (f *fakeEngine) OnRemoteTrack(fn func(core.RemoteTrack)) {
	f.mu.Lock()
	f.onTrack = fn
	f.mu.Unlock()
}

func (f *fakeEngine) fireState(st core.EngineState) {
	f.mu.Lock()
	fn := f.onState
	f.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (f *fakeEngine) fireCandidate(c domain.Candidate) {
	f.mu.Lock()
	fn := f.onCandidate
	f.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (f *fakeEngine) fireQuality(q domain.NetworkQuality) {
	f.mu.Lock()
	fn := f.onQuality
	f.mu.Unlock()
	if fn != nil {
		fn(q)
	}
}

func (f *fakeEngine) candidates() []domain.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Candidate(nil), f.cands...)
}

func (f *fakeEngine) remotes() []domain.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionDescription(nil), f.remoteDescs...)
}

func (f *fakeEngine) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type sentMsg struct {
	event   string
	payload any
}

type fakeTransport struct {
	mu          sync.Mutex
	sink        core.SignalSink
	connectErr  error
	connects    int
	disconnects int
	sent        []sentMsg
}

func (f *fakeTransport) factory() func(core.SignalSink) core.Transport {
	return func(sink core.SignalSink) core.Transport {
		f.mu.Lock()
		f.sink = sink
		f.mu.Unlock()
		return f
	}
}

func (f *fakeTransport) Connect(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeTransport) signalSink() core.SignalSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

func (f *fakeTransport) sentEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.event
	}
	return out
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type fakeBootstrap struct {
	mu    sync.Mutex
	grant domain.SessionGrant
	err   error
	calls int
}

func (f *fakeBootstrap) RequestSession(_ context.Context, _ domain.Participants, _ string) (domain.SessionGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.SessionGrant{}, f.err
	}
	return f.grant, nil
}

// recorder captures every outward notification and telephony report in
// arrival order.
type recorder struct {
	mu        sync.Mutex
	statuses  []domain.CallStatus
	profiles  []string
	qualities []domain.NetworkQuality
	holds     []bool
	reports   []string
}

func (r *recorder) StatusChanged(_ uuid.UUID, status domain.CallStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) ProfileSet(_ uuid.UUID, name, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, name)
}

func (r *recorder) NetworkQualityChanged(_ uuid.UUID, level domain.NetworkQuality) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.qualities = append(r.qualities, level)
}

func (r *recorder) HoldChanged(_ uuid.UUID, held bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holds = append(r.holds, held)
}

func (r *recorder) RemoteStream(_ uuid.UUID, _ core.RemoteTrack) {}

func (r *recorder) ReportIncomingCall(_ uuid.UUID, _, _ string) { r.report("incoming") }
func (r *recorder) ReportOutgoingStarted(_ uuid.UUID)           { r.report("outgoing") }
func (r *recorder) ReportConnected(_ uuid.UUID)                 { r.report("connected") }
func (r *recorder) ReportEnded(_ uuid.UUID)                     { r.report("ended") }

func (r *recorder) report(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, kind)
}

func (r *recorder) statusSeq() []domain.CallStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CallStatus(nil), r.statuses...)
}

func (r *recorder) lastStatus() domain.CallStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) holdSeq() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.holds...)
}

func (r *recorder) reportSeq() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reports...)
}
