// Package signal is the signaling transport adapter: one authenticated
// WebSocket connection per call, reconnect with backoff, and the
// translation between wire events and the core event vocabulary.
package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

// envelope is the one-object-per-text-message wire framing.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// critical marks messages that must never be dropped by the send
// queue; candidates are expendable under backpressure, descriptions
// and hangups are not.
func critical(event string) bool {
	switch event {
	case domain.EventInitCall, domain.EventSDPOffer, domain.EventSDPAnswer, domain.EventHangup:
		return true
	}
	return false
}

// dispatch decodes one inbound frame and hands it to the sink. Unknown
// events are logged and ignored, never fatal.
func dispatch(sink core.SignalSink, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Event {
	case domain.EventRinging:
		sink.OnRinging()
	case domain.EventAccepted:
		sink.OnAccepted()
	case domain.EventHangup:
		sink.OnHangup()
	case domain.EventSDPOffer:
		var p domain.SDPPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
			return
		}
		sink.OnRemoteOffer(domain.SessionDescription{Type: "offer", SDP: p.SDP})
	case domain.EventSDPAnswer:
		var p domain.SDPPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
			return
		}
		sink.OnRemoteAnswer(domain.SessionDescription{Type: "answer", SDP: p.SDP})
	case domain.EventICECandidate:
		var p domain.CandidatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
			return
		}
		sink.OnRemoteCandidate(domain.Candidate{
			Candidate:     p.Candidate,
			SDPMid:        p.SDPMid,
			SDPMLineIndex: p.SDPMLineIndex,
		})
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown signal")
	}
}
