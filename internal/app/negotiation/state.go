package negotiation

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duplex/internal/app/media"
	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

// State is the signaling state of one local endpoint.
//
//	caller: idle → offering → offered → connected
//	callee: idle → joining → answering → answered → connected
//	both:   * → closed
type State int

const (
	StateIdle State = iota
	StateOffering
	StateOffered
	StateJoining
	StateAnswering
	StateAnswered
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateOffered:
		return "offered"
	case StateJoining:
		return "joining"
	case StateAnswering:
		return "answering"
	case StateAnswered:
		return "answered"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// negotiationState is everything one live session owns. All fields are
// guarded by Engine.mu.
type negotiationState struct {
	role      domain.Role
	phase     State
	sessionID domain.SessionID
	endpoint  core.Endpoint
	// owned is set once this side has written the room record: on create
	// for the caller, after the answer is stored for the callee. Teardown
	// only deletes records it owns.
	owned bool

	// local is borrowed from the capture provider; extra holds screen shares.
	local *core.TrackSet
	extra []*core.TrackSet

	remote *media.RemoteStream
	subs   []core.Subscription

	// Local candidates gathered before the room id is known wait in
	// pendingLocal; remote ones that arrive before the remote description
	// is applied wait in pendingRemote.
	trickling     bool
	pendingLocal  []webrtc.ICECandidateInit
	remoteSet     bool
	pendingRemote []webrtc.ICECandidateInit

	answerApplied bool
	transportUp   bool
	failure       error

	ctx    context.Context
	cancel context.CancelFunc
}

func newNegotiationState(role domain.Role, phase State, local *core.TrackSet) *negotiationState {
	ctx, cancel := context.WithCancel(context.Background())
	return &negotiationState{
		role:   role,
		phase:  phase,
		local:  local,
		remote: media.NewRemoteStream(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// connectable reports whether a connected report may advance phase.
func (st *negotiationState) connectable() bool {
	switch st.phase {
	case StateOffered, StateAnswered:
		return true
	default:
		return false
	}
}
