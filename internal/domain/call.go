// Package domain contains entity without logic, just meta-data
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role tells which side of the call this process is.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// Participants carries the identities of both parties exactly as the
// bootstrap service expects them. Caller and callee ids are distinct
// fields and must never be swapped.
type Participants struct {
	CallerID     string `json:"callerId"`
	CallerName   string `json:"callerName"`
	CallerAvatar string `json:"callerAvatar"`
	CalleeID     string `json:"calleeId"`
	CalleeName   string `json:"calleeName"`
	CalleeAvatar string `json:"calleeAvatar"`
}

// Peer returns the remote party's handle, display name and avatar for
// the given local role.
func (p Participants) Peer(role Role) (handle, name, avatar string) {
	if role == RoleCaller {
		return p.CalleeID, p.CalleeName, p.CalleeAvatar
	}
	return p.CallerID, p.CallerName, p.CallerAvatar
}

// SessionGrant is the bootstrap service response: where to connect and
// with which token.
type SessionGrant struct {
	Server      string `json:"server"`
	Token       string `json:"token"`
	IsFromPhone bool   `json:"isFromPhone,omitempty"`
}

// CallSession is the unit of work for one call. It is created once and
// mutated only by the session state machine.
type CallSession struct {
	ID              uuid.UUID
	Role            Role
	Status          CallStatus
	PeerHandle      string
	PeerDisplayName string
	PeerAvatarRef   string
	Metadata        map[string]string
	CreatedAt       time.Time
	EndedAt         time.Time
}

// NewCallSession builds a session for the given role with the peer
// identity derived from participants and the metadata merged from
// defaults and overrides.
func NewCallSession(role Role, p Participants, overrides map[string]string) *CallSession {
	handle, name, avatar := p.Peer(role)
	status := StatusInitializing
	if role == RoleCallee {
		status = StatusIncoming
	}
	return &CallSession{
		ID:              uuid.New(),
		Role:            role,
		Status:          status,
		PeerHandle:      handle,
		PeerDisplayName: name,
		PeerAvatarRef:   avatar,
		Metadata:        MergeMetadata(DefaultMetadata(), overrides),
		CreatedAt:       time.Now(),
	}
}

// Ended reports whether the session reached its terminal state.
func (s *CallSession) Ended() bool {
	return s.Status == StatusEnded
}

// DefaultMetadata returns the built-in UI label map. Callers may
// override individual keys at call creation.
func DefaultMetadata() map[string]string {
	return map[string]string{
		"initializing": "Initializing...",
		"calling":      "Calling...",
		"incoming":     "Incoming Call",
		"ringing":      "Ringing",
		"connected":    "Connected",
		"ended":        "Ended",
		"answer":       "Answer",
		"decline":      "Decline",
		"mute":         "Mute",
		"unmute":       "Unmute",
		"speaker":      "Speaker",
	}
}

// MergeMetadata merges overrides into defaults; on key conflict the
// override wins. Neither input map is modified.
func MergeMetadata(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
