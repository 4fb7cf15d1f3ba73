package domain

// Named events of the signaling wire protocol. Unknown inbound events
// are ignored by the transport.
const (
	EventInitCall     = "INIT_CALL"
	EventRinging      = "RINGING"
	EventAccepted     = "ACCEPTED"
	EventHangup       = "HANGUP"
	EventSDPOffer     = "SDP_OFFER"
	EventSDPAnswer    = "SDP_ANSWER"
	EventICECandidate = "ICE_CANDIDATE"
)

// SessionDescription is a proposed set of media parameters (offer or
// answer) exchanged during negotiation.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is a network path descriptor exchanged to establish the
// media connection.
type Candidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

// InitCallPayload is the body of the INIT_CALL event opening an
// outgoing call on the signaling server.
type InitCallPayload struct {
	IsCaller bool               `json:"is_caller"`
	SDP      SessionDescription `json:"sdp"`
}

// SDPPayload carries a bare session description string, the body of
// SDP_OFFER and SDP_ANSWER events.
type SDPPayload struct {
	SDP string `json:"sdp"`
}

// CandidatePayload is the body of an ICE_CANDIDATE event.
type CandidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}
