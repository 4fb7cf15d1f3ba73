package domain

// CallStatus is the user-visible lifecycle status of a call.
// Values are stable because they are part of the notification surface.
type CallStatus string

const (
	StatusInitializing CallStatus = "initializing"
	StatusIncoming     CallStatus = "incoming"
	StatusCalling      CallStatus = "calling"
	StatusRinging      CallStatus = "ringing"
	StatusConnecting   CallStatus = "connecting"
	StatusConnected    CallStatus = "connected"
	StatusEnded        CallStatus = "ended"
)

// NetworkQuality is the signal-strength level reported alongside an
// established call.
type NetworkQuality string

const (
	QualityConnected    NetworkQuality = "connected"
	QualityWeak         NetworkQuality = "weak"
	QualityLost         NetworkQuality = "lost"
	QualityDisconnected NetworkQuality = "disconnected"
	QualityOther        NetworkQuality = "other"
)
