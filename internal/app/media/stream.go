// Package media holds the composite remote stream a session renders.
package media

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Duplex/internal/core"
)

// View is the read-only face of a RemoteStream handed to renderers.
type View interface {
	Tracks() []TrackInfo
	Len() int
}

// RemoteStream accumulates every remote track a session receives.
// Tracks are only ever added; Stop ends them all.
type RemoteStream struct {
	log   zerolog.Logger
	loops conc.WaitGroup

	mu      sync.RWMutex
	tracks  []*Track
	byID    map[string]*Track
	stopped bool
}

var _ View = (*RemoteStream)(nil)

func NewRemoteStream() *RemoteStream {
	return &RemoteStream{
		log:  log.With().Str("module", "media.remote").Logger(),
		byID: make(map[string]*Track),
	}
}

// AddTrack appends src and starts draining it. A track already present, or
// any track after Stop, is ignored and reported false.
func (s *RemoteStream) AddTrack(src core.RemoteTrack) (TrackInfo, bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return TrackInfo{}, false
	}
	if t, ok := s.byID[src.ID()]; ok {
		s.mu.Unlock()
		return t.Info(), false
	}
	t := newTrack(src)
	s.tracks = append(s.tracks, t)
	s.byID[src.ID()] = t
	s.mu.Unlock()

	s.log.Info().Str("track_id", src.ID()).Str("kind", src.Kind().String()).Msg("remote track added")
	s.loops.Go(func() { s.loop(t) })
	return t.Info(), true
}

// loop reads RTP from the source until it ends or the track is stopped.
// Reading is what keeps the receive pipeline and its interceptors running.
func (s *RemoteStream) loop(t *Track) {
	for {
		if t.State() == TrackStateStopped {
			return
		}
		if _, _, err := t.Src.ReadRTP(); err != nil {
			t.markEnded()
			s.log.Debug().Err(err).Str("track_id", t.Src.ID()).Msg("remote track read ended")
			return
		}
		t.packets.Add(1)
	}
}

func (s *RemoteStream) Tracks() []TrackInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TrackInfo, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t.Info())
	}
	return out
}

func (s *RemoteStream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Stop marks every track stopped. Loops exit on their next read, which
// returns once the owning endpoint closes.
func (s *RemoteStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for _, t := range s.tracks {
		t.markStopped()
	}
	s.log.Info().Int("tracks", len(s.tracks)).Msg("remote stream stopped")
}

// Wait blocks until every drain loop has returned, which happens once each
// source ends or errors.
func (s *RemoteStream) Wait() {
	s.loops.Wait()
}
