package core

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// StateKind names which transport lifecycle a StateEvent belongs to.
type StateKind string

const (
	StateKindGathering     StateKind = "ice_gathering"
	StateKindConnection    StateKind = "connection"
	StateKindSignaling     StateKind = "signaling"
	StateKindICEConnection StateKind = "ice_connection"
)

// StateEvent is one lifecycle transition reported by an Endpoint.
type StateEvent struct {
	Kind  StateKind
	State string
}

// RemoteTrack is the receive side of one negotiated media section.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Endpoint is one side's live peer connection.
// Owned by the negotiation engine; the engine must Close() it.
type Endpoint interface {
	// AddTrack attaches a local track to the connection.
	AddTrack(track webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(RemoteTrack))
	// OnStateChange sets a callback for gathering, connection, signaling
	// and ICE connection state transitions.
	OnStateChange(func(StateEvent))
	Close() error
}

// EndpointFactory builds endpoints from static deployment configuration.
type EndpointFactory interface {
	NewEndpoint(ctx context.Context) (Endpoint, error)
}
