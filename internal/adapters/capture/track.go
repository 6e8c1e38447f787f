package capture

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// opusSilence is one 20ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// vp8Filler is a minimal VP8 payload; receivers only need packets to flow.
var vp8Filler = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x01, 0x00, 0x01, 0x00}

// SampleTrack is a local track fed by a synthetic source goroutine.
type SampleTrack struct {
	*webrtc.TrackLocalStaticSample

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSampleTrack(kind webrtc.RTPCodecType, id, streamID string) (*SampleTrack, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	payload, interval := opusSilence, 20*time.Millisecond
	if kind == webrtc.RTPCodecTypeVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
		payload, interval = vp8Filler, 33*time.Millisecond
	}
	tl, err := webrtc.NewTrackLocalStaticSample(capability, id, streamID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &SampleTrack{TrackLocalStaticSample: tl, cancel: cancel, done: make(chan struct{})}
	go t.pump(ctx, payload, interval)
	return t, nil
}

func (t *SampleTrack) pump(ctx context.Context, payload []byte, interval time.Duration) {
	defer close(t.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.WriteSample(media.Sample{Data: payload, Duration: interval}); err != nil {
				log.Debug().Err(err).Str("module", "capture").Str("track_id", t.ID()).Msg("write sample")
			}
		}
	}
}

// Stop halts the source and waits for it to exit.
func (t *SampleTrack) Stop() {
	t.once.Do(func() {
		t.cancel()
		<-t.done
		log.Info().Str("module", "capture").Str("track_id", t.ID()).Msg("track stopped")
	})
}

// Stopped reports whether Stop has completed.
func (t *SampleTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
