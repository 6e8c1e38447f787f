package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/core"
)

// Options is the static deployment configuration for every endpoint.
type Options struct {
	ICEServers        []string
	CandidatePoolSize uint8
	// ReserveMedia lists kinds ("audio", "video") that get a send-receive
	// section at creation, so tracks attached after the offer still flow.
	ReserveMedia []string
	// ConfigureSettings lets callers adjust the setting engine, e.g. to bind a virtual network.
	ConfigureSettings func(*webrtc.SettingEngine)
}

func DefaultOptions() Options {
	return Options{
		ICEServers: []string{
			"stun:stun1.l.google.com:19302",
			"stun:stun2.l.google.com:19302",
		},
		CandidatePoolSize: 10,
		ReserveMedia:      []string{"audio", "video"},
	}
}

// Configuration builds the peer connection configuration from opts.
func (o Options) Configuration() webrtc.Configuration {
	cfg := webrtc.Configuration{ICECandidatePoolSize: o.CandidatePoolSize}
	if len(o.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: o.ICEServers}}
	}
	return cfg
}

// NewAPI registers default codecs and interceptors and routes pion logs through zerolog.
func NewAPI(opts Options) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = LoggerFactory{Logger: log.Logger}
	if opts.ConfigureSettings != nil {
		opts.ConfigureSettings(&se)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

// Factory creates endpoints that share one API and configuration.
type Factory struct {
	api     *webrtc.API
	cfg     webrtc.Configuration
	reserve []webrtc.RTPCodecType
}

var _ core.EndpointFactory = (*Factory)(nil)

func NewFactory(opts Options) (*Factory, error) {
	api, err := NewAPI(opts)
	if err != nil {
		return nil, err
	}
	f := &Factory{api: api, cfg: opts.Configuration()}
	for _, k := range opts.ReserveMedia {
		kind := webrtc.NewRTPCodecType(k)
		if kind == 0 {
			return nil, fmt.Errorf("reserve media: unknown kind %q", k)
		}
		f.reserve = append(f.reserve, kind)
	}
	return f, nil
}

func (f *Factory) NewEndpoint(ctx context.Context) (core.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	c := newWebRTCConnection(pc)
	for _, kind := range f.reserve {
		t, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("reserve %s section: %w", kind, err)
		}
		go drainRTCP(t.Sender())
		c.reserved = append(c.reserved, t)
	}
	return c, nil
}

// WebRTCConnection adapts a pion PeerConnection to core.Endpoint.
type WebRTCConnection struct {
	pc  *webrtc.PeerConnection
	log zerolog.Logger

	mu       sync.Mutex
	reserved []*webrtc.RTPTransceiver
	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(core.RemoteTrack)
	onState  func(core.StateEvent)
}

func newWebRTCConnection(pc *webrtc.PeerConnection) *WebRTCConnection {
	c := &WebRTCConnection{
		pc:  pc,
		log: log.With().Str("module", "webrtc").Logger(),
	}
	// pc callbacks are bound once, before any negotiation, and forward to
	// whatever application callback is current.
	watchState(pc.OnICEGatheringStateChange, c, core.StateKindGathering)
	watchState(pc.OnConnectionStateChange, c, core.StateKindConnection)
	watchState(pc.OnSignalingStateChange, c, core.StateKindSignaling)
	watchState(pc.OnICEConnectionStateChange, c, core.StateKindICEConnection)

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(track)
		}
	})
	return c
}

// watchState registers one lifecycle listener regardless of the concrete state type.
func watchState[S fmt.Stringer](register func(func(S)), c *WebRTCConnection, kind core.StateKind) {
	register(func(s S) {
		c.log.Info().Str("kind", string(kind)).Str("state", s.String()).Msg("state change")
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(core.StateEvent{Kind: kind, State: s.String()})
		}
	})
}

func drainRTCP(sender *webrtc.RTPSender) {
	if sender == nil {
		return
	}
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// AddTrack binds track into a reserved section of the same kind when one is
// free, otherwise adds a new one.
func (c *WebRTCConnection) AddTrack(track webrtc.TrackLocal) error {
	c.mu.Lock()
	var slot *webrtc.RTPTransceiver
	for i, t := range c.reserved {
		if t.Kind() == track.Kind() {
			slot = t
			c.reserved = append(c.reserved[:i], c.reserved[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if slot != nil {
		return slot.Sender().ReplaceTrack(track)
	}
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go drainRTCP(sender)
	return nil
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(sd)
}

func (c *WebRTCConnection) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(sd)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *WebRTCConnection) OnStateChange(fn func(core.StateEvent)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *WebRTCConnection) Close() error {
	if err := c.pc.Close(); err != nil {
		c.log.Error().Err(err).Msg("close error")
		return err
	}
	c.log.Info().Msg("closed")
	return nil
}
