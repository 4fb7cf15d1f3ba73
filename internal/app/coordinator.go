package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

// Coordinator drives media negotiation for one call. It wraps the media
// engine, applies at most one remote description per round and buffers
// remote candidates that arrive before the remote description exists;
// they are handed to the engine in arrival order right after the
// description is applied. Handing them over earlier would make the
// engine drop them silently.
type Coordinator struct {
	mu      sync.Mutex
	engine  core.MediaEngine
	remote  *domain.SessionDescription
	pending []domain.Candidate
	closed  bool
}

func NewCoordinator(engine core.MediaEngine) *Coordinator {
	return &Coordinator{engine: engine}
}

// OnLocalCandidate registers the callback for locally gathered
// candidates, to be sent out as ICE_CANDIDATE.
func (c *Coordinator) OnLocalCandidate(fn func(domain.Candidate)) { c.engine.OnCandidate(fn) }

// OnStateChange registers the callback for engine connection-state
// changes; it drives the Connecting to Connected transition and the
// failure path in the session.
func (c *Coordinator) OnStateChange(fn func(core.EngineState)) { c.engine.OnStateChange(fn) }

// OnQuality registers the network-quality callback.
func (c *Coordinator) OnQuality(fn func(domain.NetworkQuality)) { c.engine.OnQuality(fn) }

// OnRemoteTrack registers the callback for remote media, forwarded
// opaquely to the presentation layer.
func (c *Coordinator) OnRemoteTrack(fn func(core.RemoteTrack)) { c.engine.OnRemoteTrack(fn) }

// CreateOffer asks the engine for a local offer.
func (c *Coordinator) CreateOffer() (domain.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.SessionDescription{}, &core.NegotiationError{Op: "offer", Err: core.ErrInvalidState}
	}
	desc, err := c.engine.CreateOffer()
	if err != nil {
		return domain.SessionDescription{}, &core.NegotiationError{Op: "offer", Err: err}
	}
	return desc, nil
}

// ApplyRemoteOffer applies the peer's offer, drains buffered
// candidates and produces the local answer.
func (c *Coordinator) ApplyRemoteOffer(desc domain.SessionDescription) (domain.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.applyRemoteLocked(desc); err != nil {
		return domain.SessionDescription{}, err
	}
	answer, err := c.engine.CreateAnswer()
	if err != nil {
		return domain.SessionDescription{}, &core.NegotiationError{Op: "answer", Err: err}
	}
	return answer, nil
}

// ApplyRemoteAnswer applies the peer's answer to our earlier offer and
// drains buffered candidates.
func (c *Coordinator) ApplyRemoteAnswer(desc domain.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyRemoteLocked(desc)
}

func (c *Coordinator) applyRemoteLocked(desc domain.SessionDescription) error {
	if c.closed {
		return &core.NegotiationError{Op: "remote", Err: core.ErrInvalidState}
	}
	if c.remote != nil {
		// One remote description per negotiation round.
		return &core.NegotiationError{Op: "remote", Err: core.ErrInvalidState}
	}
	if err := c.engine.SetRemoteDescription(desc); err != nil {
		return &core.NegotiationError{Op: "remote", Err: err}
	}
	c.remote = &desc
	for _, cand := range c.pending {
		if err := c.engine.AddCandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "negotiation").Msg("drain candidate")
		}
	}
	c.pending = nil
	return nil
}

// AddRemoteCandidate forwards a candidate to the engine, or buffers it
// until a remote description has been applied.
func (c *Coordinator) AddRemoteCandidate(cand domain.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.remote == nil {
		c.pending = append(c.pending, cand)
		return nil
	}
	if err := c.engine.AddCandidate(cand); err != nil {
		return &core.NegotiationError{Op: "candidate", Err: err}
	}
	return nil
}

// Close releases the engine. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.pending = nil
	if err := c.engine.Close(); err != nil {
		log.Warn().Err(err).Str("module", "negotiation").Msg("engine close")
	}
}
