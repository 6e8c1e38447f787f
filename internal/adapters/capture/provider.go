// Package capture provides local media sources. The synthetic provider
// stands in for camera, microphone and screen devices on headless hosts.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

// Devices declares which synthetic sources exist. A missing device makes the
// matching acquire call fail with domain.ErrMediaUnavailable.
type Devices struct {
	Audio  bool
	Video  bool
	Screen bool
}

// Provider hands out synthetic tracks and owns their lifecycle.
type Provider struct {
	devices Devices

	mu   sync.Mutex
	live map[*core.TrackSet]struct{}
}

var _ core.CaptureProvider = (*Provider)(nil)

func NewProvider(d Devices) *Provider {
	return &Provider{devices: d, live: make(map[*core.TrackSet]struct{})}
}

func (p *Provider) AcquireCameraMic(ctx context.Context) (*core.TrackSet, error) {
	var kinds []webrtc.RTPCodecType
	if p.devices.Audio {
		kinds = append(kinds, webrtc.RTPCodecTypeAudio)
	}
	if p.devices.Video {
		kinds = append(kinds, webrtc.RTPCodecTypeVideo)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("camera/microphone: %w", domain.ErrMediaUnavailable)
	}
	return p.acquire(ctx, "camera", kinds)
}

func (p *Provider) AcquireScreen(ctx context.Context) (*core.TrackSet, error) {
	if !p.devices.Screen {
		return nil, fmt.Errorf("screen: %w", domain.ErrMediaUnavailable)
	}
	return p.acquire(ctx, "screen", []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo})
}

func (p *Provider) acquire(ctx context.Context, source string, kinds []webrtc.RTPCodecType) (*core.TrackSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, domain.ErrMediaUnavailable)
	}
	ts := &core.TrackSet{StreamID: source + "-" + uuid.NewString()}
	for _, kind := range kinds {
		t, err := newSampleTrack(kind, kind.String()+"-"+uuid.NewString(), ts.StreamID)
		if err != nil {
			ts.Stop()
			return nil, fmt.Errorf("%s %s track: %w", source, kind, domain.ErrMediaUnavailable)
		}
		ts.Tracks = append(ts.Tracks, t)
	}

	p.mu.Lock()
	p.live[ts] = struct{}{}
	p.mu.Unlock()
	log.Info().Str("module", "capture").Str("source", source).Str("stream_id", ts.StreamID).Int("tracks", ts.Len()).Msg("acquired")
	return ts, nil
}

// ReleaseAll stops every track in ts. Releasing twice or releasing nil is a no-op.
func (p *Provider) ReleaseAll(ts *core.TrackSet) {
	if ts == nil {
		return
	}
	p.mu.Lock()
	_, ok := p.live[ts]
	delete(p.live, ts)
	p.mu.Unlock()
	if !ok {
		return
	}
	ts.Stop()
	log.Info().Str("module", "capture").Str("stream_id", ts.StreamID).Msg("released")
}

// Live reports how many acquired sets have not been released.
func (p *Provider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
