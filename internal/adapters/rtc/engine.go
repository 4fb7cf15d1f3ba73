// Package rtc implements the media engine port on top of pion.
package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Engine wraps one PeerConnection behind the core.MediaEngine port.
type Engine struct {
	pc *webrtc.PeerConnection

	mu          sync.RWMutex
	onCandidate func(domain.Candidate)
	onState     func(core.EngineState)
	onQuality   func(domain.NetworkQuality)
	onTrack     func(core.RemoteTrack)

	closeOnce sync.Once
	closeErr  error
}

func NewEngine(cfg webrtc.Configuration) (*Engine, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		_ = pc.Close()
		return nil, err
	}

	e := &Engine{pc: pc}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		if fn := e.candidateFn(); fn != nil {
			fn(fromICEInit(cand.ToJSON()))
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("peer_connection_state", s.String()).Msg("peer state")
		if fn := e.stateFn(); fn != nil {
			fn(mapPeerState(s))
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("ice_state", s.String()).Msg("ICE state")
		if fn := e.qualityFn(); fn != nil {
			fn(mapQuality(s))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if fn := e.trackFn(); fn != nil {
			fn(track)
		}
	})

	return e, nil
}

func (e *Engine) CreateOffer() (domain.SessionDescription, error) {
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	// Trickle: candidates follow via OnICECandidate as they are found.
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, err
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (e *Engine) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(e.pc)
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return domain.SessionDescription{}, err
	}
	<-gatherComplete
	local := e.pc.LocalDescription()
	return domain.SessionDescription{Type: local.Type.String(), SDP: local.SDP}, nil
}

func (e *Engine) SetRemoteDescription(desc domain.SessionDescription) error {
	return e.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (e *Engine) AddCandidate(c domain.Candidate) error {
	return e.pc.AddICECandidate(toICEInit(c))
}

func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.pc.Close()
		log.Info().Str("module", "webrtc").Msg("closed")
	})
	return e.closeErr
}

func (e *Engine) OnCandidate(fn func(domain.Candidate)) {
	e.mu.Lock()
	e.onCandidate = fn
	e.mu.Unlock()
}

func (e *Engine) OnStateChange(fn func(core.EngineState)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

func (e *Engine) OnQuality(fn func(domain.NetworkQuality)) {
	e.mu.Lock()
	e.onQuality = fn
	e.mu.Unlock()
}

func (e *Engine) OnRemoteTrack(fn func(core.RemoteTrack)) {
	e.mu.Lock()
	e.onTrack = fn
	e.mu.Unlock()
}

func (e *Engine) candidateFn() func(domain.Candidate) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.onCandidate
}

func (e *Engine) stateFn() func(core.EngineState) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.onState
}

func (e *Engine) qualityFn() func(domain.NetworkQuality) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.onQuality
}

func (e *Engine) trackFn() func(core.RemoteTrack) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.onTrack
}

func fromICEInit(ci webrtc.ICECandidateInit) domain.Candidate {
	c := domain.Candidate{Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		c.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		c.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return c
}

func toICEInit(c domain.Candidate) webrtc.ICECandidateInit {
	ci := webrtc.ICECandidateInit{Candidate: c.Candidate}
	if c.SDPMid != "" {
		mid := c.SDPMid
		ci.SDPMid = &mid
	}
	idx := c.SDPMLineIndex
	ci.SDPMLineIndex = &idx
	return ci
}

func mapPeerState(s webrtc.PeerConnectionState) core.EngineState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return core.EngineNew
	case webrtc.PeerConnectionStateConnecting:
		return core.EngineConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.EngineConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.EngineDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.EngineFailed
	case webrtc.PeerConnectionStateClosed:
		return core.EngineClosed
	default:
		return core.EngineNew
	}
}

// mapQuality turns ICE connection states into the signal-strength
// levels the presentation layer understands.
func mapQuality(s webrtc.ICEConnectionState) domain.NetworkQuality {
	switch s {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return domain.QualityConnected
	case webrtc.ICEConnectionStateDisconnected:
		return domain.QualityDisconnected
	case webrtc.ICEConnectionStateFailed:
		return domain.QualityWeak
	case webrtc.ICEConnectionStateClosed:
		return domain.QualityLost
	default:
		return domain.QualityOther
	}
}
