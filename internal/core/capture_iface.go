package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// LocalTrack is a capture-owned track that can be attached to an Endpoint.
type LocalTrack interface {
	webrtc.TrackLocal
	// Stop halts the capture source feeding this track.
	Stop()
}

// TrackSet is one acquired capture stream. Endpoints borrow its tracks;
// only the CaptureProvider stops them.
type TrackSet struct {
	StreamID string
	Tracks   []LocalTrack
}

func (ts *TrackSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.Tracks)
}

// Stop halts every track in the set. Safe on nil.
func (ts *TrackSet) Stop() {
	if ts == nil {
		return
	}
	for _, t := range ts.Tracks {
		t.Stop()
	}
}

// CaptureProvider acquires local media. Denial is reported as
// domain.ErrMediaUnavailable.
//
//go:generate mockgen -destination=mock_capture.go -package=core . CaptureProvider
type CaptureProvider interface {
	AcquireCameraMic(ctx context.Context) (*TrackSet, error)
	AcquireScreen(ctx context.Context) (*TrackSet, error)
	ReleaseAll(ts *TrackSet)
}
