package app

import (
	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

// Events delivered to the session's single apply loop. Producers run on
// transport and engine goroutines; the queue serializes them.
type event interface{ isEvent() }

// evAnnounce is queued first, before any transport or bootstrap
// outcome: it emits the initial telephony report and presentation
// state from the apply loop so session construction never runs
// integrator callbacks on the caller's goroutine.
type evAnnounce struct{}

type evBootstrap struct {
	grant domain.SessionGrant
	err   error
}

type evTransportUp struct{}

type evTransportDown struct {
	err   error
	fatal bool
}

type evRinging struct{}

type evAccepted struct{}

type evHangup struct{}

type evRemoteOffer struct{ desc domain.SessionDescription }

type evRemoteAnswer struct{ desc domain.SessionDescription }

type evRemoteCandidate struct{ cand domain.Candidate }

type evLocalCandidate struct{ cand domain.Candidate }

type evEngineState struct{ state core.EngineState }

type evQuality struct{ level domain.NetworkQuality }

type evRemoteTrack struct{ track core.RemoteTrack }

type cmdKind int

const (
	cmdAnswer cmdKind = iota
	cmdEnd
	cmdHold
)

// evCommand is a native telephony command; the outcome is reported on
// reply within the same transition pass.
type evCommand struct {
	kind  cmdKind
	hold  bool
	reply chan<- error
}

func (evAnnounce) isEvent()        {}
func (evBootstrap) isEvent()       {}
func (evTransportUp) isEvent()     {}
func (evTransportDown) isEvent()   {}
func (evRinging) isEvent()         {}
func (evAccepted) isEvent()        {}
func (evHangup) isEvent()          {}
func (evRemoteOffer) isEvent()     {}
func (evRemoteAnswer) isEvent()    {}
func (evRemoteCandidate) isEvent() {}
func (evLocalCandidate) isEvent()  {}
func (evEngineState) isEvent()     {}
func (evQuality) isEvent()         {}
func (evRemoteTrack) isEvent()     {}
func (evCommand) isEvent()         {}
