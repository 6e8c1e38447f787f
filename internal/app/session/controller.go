// Package session is the thin surface UI glue drives: capture, create,
// join, screen share and hang-up.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/app/media"
	"github.com/dkeye/Duplex/internal/app/negotiation"
	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

// Negotiator is one session's negotiation engine.
//
//go:generate mockgen -destination=mock_negotiator.go -package=session . Negotiator
type Negotiator interface {
	Create(ctx context.Context, local *core.TrackSet) (domain.SessionID, error)
	Join(ctx context.Context, id domain.SessionID, local *core.TrackSet) error
	AttachTracks(ts *core.TrackSet) error
	Close(ctx context.Context) error
	State() negotiation.State
	SessionID() domain.SessionID
	Remote() media.View
}

var _ Negotiator = (*negotiation.Engine)(nil)

// NegotiatorFactory builds a fresh engine for every session.
type NegotiatorFactory func() Negotiator

// Status is what the action surface should offer next.
type Status int

const (
	// StatusIdle: no local media; only StartLocalCapture is possible.
	StatusIdle Status = iota
	// StatusReady: local media held; create or join is possible.
	StatusReady
	// StatusInSession: a session is live; screen share and hang-up are possible.
	StatusInSession
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusReady:
		return "ready"
	case StatusInSession:
		return "in-session"
	default:
		return "unknown"
	}
}

// Controller holds at most one session and the local media it borrows.
type Controller struct {
	capture   core.CaptureProvider
	newEngine NegotiatorFactory
	log       zerolog.Logger

	mu     sync.Mutex
	local  *core.TrackSet
	screen *core.TrackSet
	engine Negotiator
}

func NewController(capture core.CaptureProvider, newEngine NegotiatorFactory) *Controller {
	return &Controller{
		capture:   capture,
		newEngine: newEngine,
		log:       log.With().Str("module", "session").Logger(),
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	switch {
	case c.engine != nil:
		return StatusInSession
	case c.local != nil:
		return StatusReady
	default:
		return StatusIdle
	}
}

// StartLocalCapture acquires camera and microphone. Calling it while media
// is already held returns the held set.
func (c *Controller) StartLocalCapture(ctx context.Context) (*core.TrackSet, error) {
	c.mu.Lock()
	if c.local != nil {
		ts := c.local
		c.mu.Unlock()
		return ts, nil
	}
	c.mu.Unlock()

	ts, err := c.capture.AcquireCameraMic(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("local capture denied")
		return nil, err
	}

	c.mu.Lock()
	if c.local != nil {
		// Lost a race with another start; keep the first set.
		held := c.local
		c.mu.Unlock()
		c.capture.ReleaseAll(ts)
		return held, nil
	}
	c.local = ts
	c.mu.Unlock()
	c.log.Info().Str("stream_id", ts.StreamID).Int("tracks", ts.Len()).Msg("local capture started")
	return ts, nil
}

// reserve claims the session slot for a new engine.
func (c *Controller) reserve() (Negotiator, *core.TrackSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return nil, nil, domain.ErrAlreadyInSession
	}
	if c.local == nil {
		return nil, nil, fmt.Errorf("start local capture first: %w", domain.ErrMediaUnavailable)
	}
	c.engine = c.newEngine()
	return c.engine, c.local, nil
}

// abandon discards a failed engine and keeps local media so the user can retry.
func (c *Controller) abandon(ctx context.Context, eng Negotiator) {
	if err := eng.Close(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn().Err(err).Msg("cleanup after failed negotiation")
	}
	c.mu.Lock()
	if c.engine == eng {
		c.engine = nil
	}
	c.mu.Unlock()
}

// CreateSession starts a session as caller and returns the room id to share.
func (c *Controller) CreateSession(ctx context.Context) (domain.SessionID, error) {
	eng, local, err := c.reserve()
	if err != nil {
		return "", err
	}
	id, err := eng.Create(ctx, local)
	if err != nil {
		c.log.Error().Err(err).Msg("create session")
		c.abandon(ctx, eng)
		return "", err
	}
	c.log.Info().Str("session_id", string(id)).Str("role", string(domain.RoleCaller)).Msg("session created")
	return id, nil
}

// JoinSession answers the room id as callee.
func (c *Controller) JoinSession(ctx context.Context, id domain.SessionID) error {
	eng, local, err := c.reserve()
	if err != nil {
		return err
	}
	if err := eng.Join(ctx, id, local); err != nil {
		c.log.Error().Err(err).Str("session_id", string(id)).Msg("join session")
		c.abandon(ctx, eng)
		return err
	}
	c.log.Info().Str("session_id", string(id)).Str("role", string(domain.RoleCallee)).Msg("session joined")
	return nil
}

// AddScreenShare attaches a screen capture to the live session. A failure
// leaves the session untouched.
func (c *Controller) AddScreenShare(ctx context.Context) error {
	c.mu.Lock()
	eng, sharing := c.engine, c.screen != nil
	c.mu.Unlock()
	if eng == nil {
		return domain.ErrNoSession
	}
	if sharing {
		return nil
	}

	ts, err := c.capture.AcquireScreen(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("screen share denied")
		return err
	}
	if err := eng.AttachTracks(ts); err != nil {
		c.log.Warn().Err(err).Msg("screen share not attached")
		c.capture.ReleaseAll(ts)
		return err
	}

	c.mu.Lock()
	if c.engine != eng || c.screen != nil {
		c.mu.Unlock()
		c.capture.ReleaseAll(ts)
		return domain.ErrNoSession
	}
	c.screen = ts
	c.mu.Unlock()
	c.log.Info().Str("stream_id", ts.StreamID).Msg("screen share started")
	return nil
}

// EndSession hangs up and releases every local track, leaving the
// controller with no media. It never fails and is safe to repeat.
func (c *Controller) EndSession(ctx context.Context) {
	c.mu.Lock()
	eng, local, screen := c.engine, c.local, c.screen
	c.engine, c.local, c.screen = nil, nil, nil
	c.mu.Unlock()

	if eng != nil {
		if err := eng.Close(ctx); err != nil {
			c.log.Warn().Err(err).Msg("teardown incomplete")
		}
	}
	for _, ts := range []*core.TrackSet{screen, local} {
		if ts != nil {
			c.capture.ReleaseAll(ts)
		}
	}
	if eng != nil || local != nil {
		c.log.Info().Msg("session ended")
	}
}

// SessionID is the live room id, or empty.
func (c *Controller) SessionID() domain.SessionID {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return ""
	}
	return eng.SessionID()
}

// Remote is the live session's remote stream, or nil.
func (c *Controller) Remote() media.View {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Remote()
}

// State is the live engine's negotiation state, or idle.
func (c *Controller) State() negotiation.State {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return negotiation.StateIdle
	}
	return eng.State()
}
