// Package negotiation drives the offer/answer state machine for one
// two-party session and relays candidates through the signaling store.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/dkeye/Duplex/internal/app/media"
	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

// ErrClosed is returned by a step that resumed after teardown.
var ErrClosed = errors.New("negotiation closed")

// Option configures an Engine.
type Option func(*Engine)

// WithTrackHandler is called for every remote track added to the session's stream.
func WithTrackHandler(fn func(media.TrackInfo)) Option {
	return func(e *Engine) { e.onTrack = fn }
}

// WithStateHandler is called after every state transition.
func WithStateHandler(fn func(State)) Option {
	return func(e *Engine) { e.onState = fn }
}

// Engine negotiates exactly one session: Create or Join once, then Close.
// It never retries a failed store or transport step.
type Engine struct {
	store     core.SignalChannel
	endpoints core.EndpointFactory
	log       zerolog.Logger

	onTrack func(media.TrackInfo)
	onState func(State)

	mu    sync.Mutex
	st    *negotiationState
	final State
}

func New(store core.SignalChannel, endpoints core.EndpointFactory, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		endpoints: endpoints,
		log:       log.With().Str("module", "negotiation").Logger(),
		final:     StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the current state; after Close it is StateClosed.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == nil {
		return e.final
	}
	return e.st.phase
}

// SessionID is empty until the room record exists (caller) or was read (callee).
func (e *Engine) SessionID() domain.SessionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == nil {
		return ""
	}
	return e.st.sessionID
}

// Remote returns the session's composite remote stream, or nil when no
// session is live.
func (e *Engine) Remote() media.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == nil {
		return nil
	}
	return e.st.remote
}

// Failure reports a fatal transport rejection observed outside a call,
// such as a malformed answer arriving through the store.
func (e *Engine) Failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == nil {
		return nil
	}
	return e.st.failure
}

// liveLocked reports whether st is still the engine's session. e.mu must be held.
func (e *Engine) liveLocked(st *negotiationState) bool {
	return e.st == st && st.phase != StateClosed
}

func (e *Engine) alive(st *negotiationState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveLocked(st)
}

// advance moves st to phase if it is still live.
func (e *Engine) advance(st *negotiationState, phase State) bool {
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		return false
	}
	if st.transportUp && (phase == StateOffered || phase == StateAnswered) {
		phase = StateConnected
	}
	st.phase = phase
	e.mu.Unlock()
	e.changed(st, phase)
	return true
}

func (e *Engine) changed(st *negotiationState, phase State) {
	e.log.Info().
		Str("role", string(st.role)).
		Str("session_id", string(st.sessionID)).
		Str("state", phase.String()).
		Msg("state")
	if e.onState != nil {
		e.onState(phase)
	}
}

func (e *Engine) begin(role domain.Role, phase State, local *core.TrackSet) (*negotiationState, error) {
	e.mu.Lock()
	if e.st != nil || e.final != StateIdle {
		e.mu.Unlock()
		return nil, domain.ErrAlreadyInSession
	}
	st := newNegotiationState(role, phase, local)
	e.st = st
	e.mu.Unlock()
	e.changed(st, phase)
	return st, nil
}

func rejected(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrNegotiationRejected, step, err)
}

func storeFailed(step string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrAnswerExists) ||
		errors.Is(err, domain.ErrInvalidQueue) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, step, err)
}

// Create runs the caller path: offer, persist, attach, then relay.
// If the room cannot be persisted nothing is attached or subscribed.
func (e *Engine) Create(ctx context.Context, local *core.TrackSet) (domain.SessionID, error) {
	st, err := e.begin(domain.RoleCaller, StateOffering, local)
	if err != nil {
		return "", err
	}

	ep, err := e.openEndpoint(ctx, st)
	if err != nil {
		return "", err
	}

	offer, err := ep.CreateOffer()
	if err != nil {
		return "", rejected("create offer", err)
	}
	if !e.alive(st) {
		return "", ErrClosed
	}
	if err := ep.SetLocalDescription(offer); err != nil {
		return "", rejected("set local offer", err)
	}
	if !e.alive(st) {
		return "", ErrClosed
	}

	id, err := e.store.CreateSession(ctx, domain.DescriptorFrom(offer))
	if err != nil {
		return "", storeFailed("create session", err)
	}
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		// Teardown ran while the record was being written; nobody owns it now.
		if err := e.store.DeleteSession(context.WithoutCancel(ctx), id); err != nil {
			e.log.Warn().Err(err).Str("session_id", string(id)).Msg("orphaned session not deleted")
		}
		return "", ErrClosed
	}
	st.sessionID = id
	st.owned = true
	e.mu.Unlock()
	if !e.advance(st, StateOffered) {
		return "", ErrClosed
	}

	if err := e.attach(st, ep, local); err != nil {
		return id, err
	}
	e.startTrickle(st)
	if err := e.watchAnswer(ctx, st, id); err != nil {
		return id, err
	}
	if err := e.watchRemoteCandidates(ctx, st, id, domain.RoleCaller.Inbound()); err != nil {
		return id, err
	}
	return id, nil
}

// Join runs the callee path. An unknown id returns domain.ErrSessionNotFound
// with no endpoint created and the engine left in StateJoining.
func (e *Engine) Join(ctx context.Context, id domain.SessionID, local *core.TrackSet) error {
	st, err := e.begin(domain.RoleCallee, StateJoining, local)
	if err != nil {
		return err
	}

	sess, err := e.store.GetSession(ctx, id)
	if err != nil {
		return storeFailed("get session", err)
	}
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		return ErrClosed
	}
	st.sessionID = id
	e.mu.Unlock()

	ep, err := e.openEndpoint(ctx, st)
	if err != nil {
		return err
	}
	if err := e.attach(st, ep, local); err != nil {
		return err
	}
	if !e.advance(st, StateAnswering) {
		return ErrClosed
	}

	if err := ep.SetRemoteDescription(sess.Offer.SessionDescription()); err != nil {
		return rejected("set remote offer", err)
	}
	e.remoteApplied(st, ep)

	answer, err := ep.CreateAnswer()
	if err != nil {
		return rejected("create answer", err)
	}
	if !e.alive(st) {
		return ErrClosed
	}
	if err := ep.SetLocalDescription(answer); err != nil {
		return rejected("set local answer", err)
	}
	if !e.alive(st) {
		return ErrClosed
	}

	if err := e.store.SetAnswer(ctx, id, domain.DescriptorFrom(answer)); err != nil {
		return storeFailed("set answer", err)
	}
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		// The answer landed after teardown; the room now points at a dead endpoint.
		if err := e.purge(context.WithoutCancel(ctx), id); err != nil {
			e.log.Warn().Err(err).Str("session_id", string(id)).Msg("answered session not deleted")
		}
		return ErrClosed
	}
	st.owned = true
	e.mu.Unlock()
	if !e.advance(st, StateAnswered) {
		return ErrClosed
	}

	e.startTrickle(st)
	return e.watchRemoteCandidates(ctx, st, id, domain.RoleCallee.Inbound())
}

// AttachTracks adds more local tracks, e.g. a screen share, to the live endpoint.
// The set stays owned by the caller.
func (e *Engine) AttachTracks(ts *core.TrackSet) error {
	e.mu.Lock()
	st := e.st
	if st == nil || !e.liveLocked(st) || st.endpoint == nil {
		e.mu.Unlock()
		return domain.ErrNoSession
	}
	ep := st.endpoint
	st.extra = append(st.extra, ts)
	e.mu.Unlock()
	return e.attach(st, ep, ts)
}

// openEndpoint creates the endpoint and binds every listener before any
// negotiation traffic.
func (e *Engine) openEndpoint(ctx context.Context, st *negotiationState) (core.Endpoint, error) {
	ep, err := e.endpoints.NewEndpoint(ctx)
	if err != nil {
		return nil, rejected("new endpoint", err)
	}
	ep.OnStateChange(func(ev core.StateEvent) { e.onEndpointState(st, ev) })
	ep.OnICECandidate(func(c webrtc.ICECandidateInit) { e.onLocalCandidate(st, c) })
	ep.OnTrack(func(t core.RemoteTrack) { e.onRemoteTrack(st, t) })

	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		_ = ep.Close()
		return nil, ErrClosed
	}
	st.endpoint = ep
	e.mu.Unlock()
	return ep, nil
}

func (e *Engine) attach(st *negotiationState, ep core.Endpoint, ts *core.TrackSet) error {
	if ts == nil {
		return nil
	}
	for _, t := range ts.Tracks {
		if !e.alive(st) {
			return ErrClosed
		}
		if err := ep.AddTrack(t); err != nil {
			return rejected("add "+t.Kind().String()+" track", err)
		}
		e.log.Debug().Str("session_id", string(st.sessionID)).Str("track_id", t.ID()).Msg("local track attached")
	}
	return nil
}

// startTrickle flushes candidates gathered so far and lets later ones go
// straight to the store.
func (e *Engine) startTrickle(st *negotiationState) {
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		return
	}
	st.trickling = true
	pending := st.pendingLocal
	st.pendingLocal = nil
	id, q := st.sessionID, st.role.Outbound()
	e.mu.Unlock()

	for _, c := range pending {
		e.publish(st, id, q, c)
	}
}

func (e *Engine) onLocalCandidate(st *negotiationState, c webrtc.ICECandidateInit) {
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		return
	}
	if !st.trickling {
		st.pendingLocal = append(st.pendingLocal, c)
		e.mu.Unlock()
		return
	}
	id, q := st.sessionID, st.role.Outbound()
	e.mu.Unlock()
	e.publish(st, id, q, c)
}

// publish is fire-and-forget relative to negotiation; a lost candidate only
// narrows the set of paths the peer can try.
func (e *Engine) publish(st *negotiationState, id domain.SessionID, q domain.Queue, c webrtc.ICECandidateInit) {
	if err := e.store.AppendCandidate(st.ctx, id, q, c); err != nil {
		if st.ctx.Err() != nil {
			return
		}
		e.log.Warn().Err(err).Str("session_id", string(id)).Str("queue", string(q)).Msg("candidate not published")
	}
}

func (e *Engine) watchAnswer(ctx context.Context, st *negotiationState, id domain.SessionID) error {
	sub, err := e.store.SubscribeSession(ctx, id, func(s domain.Session) { e.onSessionChange(st, s) })
	if err != nil {
		return storeFailed("subscribe session", err)
	}
	return e.keep(st, sub)
}

func (e *Engine) watchRemoteCandidates(ctx context.Context, st *negotiationState, id domain.SessionID, q domain.Queue) error {
	sub, err := e.store.SubscribeCandidates(ctx, id, q, func(rec domain.CandidateRecord) {
		e.onRemoteCandidate(st, rec.Candidate)
	})
	if err != nil {
		return storeFailed("subscribe "+string(q), err)
	}
	return e.keep(st, sub)
}

// keep stores sub for teardown, or releases it if teardown already ran.
func (e *Engine) keep(st *negotiationState, sub core.Subscription) error {
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	st.subs = append(st.subs, sub)
	e.mu.Unlock()
	return nil
}

// onSessionChange applies the callee's answer exactly once per session.
func (e *Engine) onSessionChange(st *negotiationState, s domain.Session) {
	if s.Answer == nil {
		return
	}
	e.mu.Lock()
	if !e.liveLocked(st) || st.answerApplied {
		e.mu.Unlock()
		return
	}
	st.answerApplied = true
	ep := st.endpoint
	e.mu.Unlock()

	if err := ep.SetRemoteDescription(s.Answer.SessionDescription()); err != nil {
		e.fail(st, rejected("set remote answer", err))
		return
	}
	e.log.Info().Str("session_id", string(s.ID)).Msg("remote answer applied")
	e.remoteApplied(st, ep)
}

// remoteApplied releases remote candidates held back until a remote
// description existed. remoteSet flips only once the backlog is empty so a
// newer candidate cannot overtake a buffered one.
func (e *Engine) remoteApplied(st *negotiationState, ep core.Endpoint) {
	for {
		e.mu.Lock()
		if !e.liveLocked(st) {
			e.mu.Unlock()
			return
		}
		pending := st.pendingRemote
		st.pendingRemote = nil
		if len(pending) == 0 {
			st.remoteSet = true
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		for _, c := range pending {
			e.applyCandidate(st, ep, c)
		}
	}
}

func (e *Engine) onRemoteCandidate(st *negotiationState, c webrtc.ICECandidateInit) {
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		return
	}
	if !st.remoteSet {
		st.pendingRemote = append(st.pendingRemote, c)
		e.mu.Unlock()
		return
	}
	ep := st.endpoint
	e.mu.Unlock()
	e.applyCandidate(st, ep, c)
}

// applyCandidate tolerates replays and bad candidates; neither ends the session.
func (e *Engine) applyCandidate(st *negotiationState, ep core.Endpoint, c webrtc.ICECandidateInit) {
	if err := ep.AddICECandidate(c); err != nil {
		e.log.Warn().Err(err).Str("session_id", string(st.sessionID)).Str("candidate", c.Candidate).Msg("remote candidate rejected")
	}
}

func (e *Engine) onRemoteTrack(st *negotiationState, t core.RemoteTrack) {
	if !e.alive(st) {
		return
	}
	info, added := st.remote.AddTrack(t)
	if added && e.onTrack != nil {
		e.onTrack(info)
	}
}

func (e *Engine) onEndpointState(st *negotiationState, ev core.StateEvent) {
	if ev.Kind != core.StateKindConnection {
		return
	}
	e.mu.Lock()
	if !e.liveLocked(st) {
		e.mu.Unlock()
		return
	}
	switch ev.State {
	case webrtc.PeerConnectionStateConnected.String():
		st.transportUp = true
		if !st.connectable() {
			e.mu.Unlock()
			return
		}
		st.phase = StateConnected
		e.mu.Unlock()
		e.changed(st, StateConnected)
	case webrtc.PeerConnectionStateFailed.String():
		e.mu.Unlock()
		e.log.Warn().Str("session_id", string(st.sessionID)).Msg("transport failed")
	default:
		e.mu.Unlock()
	}
}

func (e *Engine) fail(st *negotiationState, err error) {
	e.mu.Lock()
	if e.liveLocked(st) && st.failure == nil {
		st.failure = err
	}
	e.mu.Unlock()
	e.log.Error().Err(err).Str("session_id", string(st.sessionID)).Msg("session failed")
}

// Close tears the session down from any state. It is idempotent and
// best-effort: every step runs even if an earlier one failed, and the
// returned error only reports what could not be cleaned up. Store records
// are deleted only when this side owns the room.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	st := e.st
	e.st = nil
	e.final = StateClosed
	if st == nil {
		e.mu.Unlock()
		return nil
	}
	st.phase = StateClosed
	subs := st.subs
	st.subs = nil
	ep := st.endpoint
	id, owned := st.sessionID, st.owned
	e.mu.Unlock()

	st.cancel()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	st.remote.Stop()

	var errs error
	if ep != nil {
		if err := ep.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close endpoint: %w", err))
		}
	}
	if owned {
		errs = multierr.Append(errs, e.purge(ctx, id))
	}
	e.changed(st, StateClosed)
	if errs != nil {
		e.log.Warn().Err(errs).Str("session_id", string(id)).Msg("teardown incomplete")
	}
	return errs
}

// purge deletes both candidate queues and then the room record.
func (e *Engine) purge(ctx context.Context, id domain.SessionID) error {
	var errs error
	for _, q := range []domain.Queue{domain.QueueFromCaller, domain.QueueFromCallee} {
		recs, err := e.store.ListCandidates(ctx, id, q)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				errs = multierr.Append(errs, fmt.Errorf("list %s: %w", q, err))
			}
			continue
		}
		for _, rec := range recs {
			if err := e.store.DeleteCandidate(ctx, id, q, rec.ID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("delete %s/%s: %w", q, rec.ID, err))
			}
		}
	}
	if err := e.store.DeleteSession(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		errs = multierr.Append(errs, fmt.Errorf("delete session: %w", err))
	}
	return errs
}
