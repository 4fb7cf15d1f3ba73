// Package telephony holds the outward-facing notification adapters:
// the platform telephony reporter and the presentation notifier. On
// platforms without a native telephony facility the logging
// implementations below are the default.
package telephony

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/core"
	"github.com/cicare/callsdk/internal/domain"
)

// LogReporter writes telephony reports to the log.
type LogReporter struct {
	log zerolog.Logger
}

func NewLogReporter() *LogReporter {
	return &LogReporter{log: log.With().Str("module", "telephony").Logger()}
}

func (r *LogReporter) ReportIncomingCall(id uuid.UUID, handle, displayName string) {
	r.log.Info().Str("call_id", id.String()).Str("handle", handle).Str("name", displayName).Msg("incoming call")
}

func (r *LogReporter) ReportOutgoingStarted(id uuid.UUID) {
	r.log.Info().Str("call_id", id.String()).Msg("outgoing call started")
}

func (r *LogReporter) ReportConnected(id uuid.UUID) {
	r.log.Info().Str("call_id", id.String()).Msg("call connected")
}

func (r *LogReporter) ReportEnded(id uuid.UUID) {
	r.log.Info().Str("call_id", id.String()).Msg("call ended")
}

// LogNotifier writes presentation notifications to the log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: log.With().Str("module", "notify").Logger()}
}

func (n *LogNotifier) StatusChanged(callID uuid.UUID, status domain.CallStatus) {
	n.log.Info().Str("call_id", callID.String()).Str("status", string(status)).Msg("status changed")
}

func (n *LogNotifier) ProfileSet(callID uuid.UUID, name, avatarRef string) {
	n.log.Info().Str("call_id", callID.String()).Str("name", name).Str("avatar", avatarRef).Msg("profile set")
}

func (n *LogNotifier) NetworkQualityChanged(callID uuid.UUID, level domain.NetworkQuality) {
	n.log.Info().Str("call_id", callID.String()).Str("level", string(level)).Msg("network quality changed")
}

func (n *LogNotifier) HoldChanged(callID uuid.UUID, held bool) {
	n.log.Info().Str("call_id", callID.String()).Bool("held", held).Msg("hold changed")
}

func (n *LogNotifier) RemoteStream(callID uuid.UUID, _ core.RemoteTrack) {
	n.log.Info().Str("call_id", callID.String()).Msg("remote stream available")
}

// NotifierFuncs adapts plain functions to the Notifier port; nil
// fields are no-ops.
type NotifierFuncs struct {
	OnStatus  func(uuid.UUID, domain.CallStatus)
	OnProfile func(uuid.UUID, string, string)
	OnQuality func(uuid.UUID, domain.NetworkQuality)
	OnHold    func(uuid.UUID, bool)
	OnStream  func(uuid.UUID, core.RemoteTrack)
}

func (n NotifierFuncs) StatusChanged(id uuid.UUID, status domain.CallStatus) {
	if n.OnStatus != nil {
		n.OnStatus(id, status)
	}
}

func (n NotifierFuncs) ProfileSet(id uuid.UUID, name, avatarRef string) {
	if n.OnProfile != nil {
		n.OnProfile(id, name, avatarRef)
	}
}

func (n NotifierFuncs) NetworkQualityChanged(id uuid.UUID, level domain.NetworkQuality) {
	if n.OnQuality != nil {
		n.OnQuality(id, level)
	}
}

func (n NotifierFuncs) HoldChanged(id uuid.UUID, held bool) {
	if n.OnHold != nil {
		n.OnHold(id, held)
	}
}

func (n NotifierFuncs) RemoteStream(id uuid.UUID, track core.RemoteTrack) {
	if n.OnStream != nil {
		n.OnStream(id, track)
	}
}
