package media

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duplex/internal/core"
)

type TrackState int32

const (
	TrackStateLive TrackState = iota
	TrackStateEnded
	TrackStateStopped
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	case TrackStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Track is one remote track inside a composite stream.
type Track struct {
	Src core.RemoteTrack

	state   atomic.Int32 // Zero by default (TrackStateLive)
	packets atomic.Uint64
}

func newTrack(src core.RemoteTrack) *Track {
	return &Track{Src: src}
}

func (t *Track) State() TrackState {
	return TrackState(t.state.Load())
}

// markStopped is final; a stopped track never becomes live or ended again.
func (t *Track) markStopped() {
	t.state.Store(int32(TrackStateStopped))
}

func (t *Track) markEnded() {
	t.state.CompareAndSwap(int32(TrackStateLive), int32(TrackStateEnded))
}

// TrackInfo is a read-only snapshot of one remote track.
type TrackInfo struct {
	ID       string
	StreamID string
	Kind     webrtc.RTPCodecType
	State    TrackState
	Packets  uint64
}

func (t *Track) Info() TrackInfo {
	return TrackInfo{
		ID:       t.Src.ID(),
		StreamID: t.Src.StreamID(),
		Kind:     t.Src.Kind(),
		State:    t.State(),
		Packets:  t.packets.Load(),
	}
}
