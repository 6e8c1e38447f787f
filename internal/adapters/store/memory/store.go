// Package memory is an in-process signaling store: one document per room
// plus two ordered candidate collections, with push-notify subscriptions.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

var _ core.SignalChannel = (*Store)(nil)

type roomEntry struct {
	session domain.Session
	queues  map[domain.Queue][]domain.CandidateRecord

	sessionSubs   map[*Subscription]*feed[domain.Session]
	candidateSubs map[domain.Queue]map[*Subscription]*feed[domain.CandidateRecord]
}

func newRoomEntry(s domain.Session) *roomEntry {
	cs := make(map[domain.Queue]map[*Subscription]*feed[domain.CandidateRecord], 2)
	cs[domain.QueueFromCaller] = make(map[*Subscription]*feed[domain.CandidateRecord])
	cs[domain.QueueFromCallee] = make(map[*Subscription]*feed[domain.CandidateRecord])
	return &roomEntry{
		session:       s,
		queues:        make(map[domain.Queue][]domain.CandidateRecord),
		sessionSubs:   make(map[*Subscription]*feed[domain.Session]),
		candidateSubs: cs,
	}
}

// Store is a threadsafe in-memory signaling store.
type Store struct {
	mu    sync.RWMutex
	rooms map[domain.SessionID]*roomEntry
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[domain.SessionID]*roomEntry),
		now:   time.Now,
	}
}

// Subscription is a handle on one feed. Done is closed when the feed ends,
// either through Unsubscribe or because the room was deleted.
type Subscription struct {
	stop func()
	once sync.Once
	done chan struct{}
}

func newSubscription() *Subscription {
	return &Subscription{done: make(chan struct{})}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		close(s.done)
	})
}

func (s *Subscription) Done() <-chan struct{} { return s.done }

func copySession(s domain.Session) domain.Session {
	if s.Answer != nil {
		a := *s.Answer
		s.Answer = &a
	}
	return s
}

// unavailable reports a caller that has already given up on the operation.
func unavailable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (st *Store) CreateSession(ctx context.Context, offer domain.Descriptor) (domain.SessionID, error) {
	if err := unavailable(ctx); err != nil {
		return "", err
	}
	id := domain.NewSessionID()
	st.mu.Lock()
	st.rooms[id] = newRoomEntry(domain.Session{ID: id, Offer: offer, CreatedAt: st.now()})
	st.mu.Unlock()
	log.Info().Str("module", "store.memory").Str("session_id", string(id)).Msg("created session")
	return id, nil
}

func (st *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	if err := unavailable(ctx); err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.rooms[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s := copySession(r.session)
	return &s, nil
}

func (st *Store) SetAnswer(ctx context.Context, id domain.SessionID, answer domain.Descriptor) error {
	if err := unavailable(ctx); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.rooms[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if r.session.Answer != nil {
		return domain.ErrAnswerExists
	}
	a := answer
	r.session.Answer = &a
	for _, f := range r.sessionSubs {
		f.push(copySession(r.session))
	}
	log.Info().Str("module", "store.memory").Str("session_id", string(id)).Msg("answer set")
	return nil
}

// Append stores c at the tail of q and returns the new record.
func (st *Store) Append(ctx context.Context, id domain.SessionID, q domain.Queue, c webrtc.ICECandidateInit) (domain.CandidateRecord, error) {
	if err := unavailable(ctx); err != nil {
		return domain.CandidateRecord{}, err
	}
	if !q.Valid() {
		return domain.CandidateRecord{}, domain.ErrInvalidQueue
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.rooms[id]
	if !ok {
		return domain.CandidateRecord{}, domain.ErrSessionNotFound
	}
	rec := domain.CandidateRecord{
		ID:        domain.NewCandidateID(),
		Queue:     q,
		Candidate: c,
		CreatedAt: st.now(),
	}
	r.queues[q] = append(r.queues[q], rec)
	for _, f := range r.candidateSubs[q] {
		f.push(rec)
	}
	log.Debug().Str("module", "store.memory").Str("session_id", string(id)).Str("queue", string(q)).Msg("candidate appended")
	return rec, nil
}

func (st *Store) AppendCandidate(ctx context.Context, id domain.SessionID, q domain.Queue, c webrtc.ICECandidateInit) error {
	_, err := st.Append(ctx, id, q, c)
	return err
}

func (st *Store) SubscribeCandidates(ctx context.Context, id domain.SessionID, q domain.Queue, onAppend func(domain.CandidateRecord)) (core.Subscription, error) {
	return st.WatchCandidates(ctx, id, q, onAppend)
}

// WatchCandidates is SubscribeCandidates returning the concrete handle.
func (st *Store) WatchCandidates(ctx context.Context, id domain.SessionID, q domain.Queue, onAppend func(domain.CandidateRecord)) (*Subscription, error) {
	if err := unavailable(ctx); err != nil {
		return nil, err
	}
	if !q.Valid() {
		return nil, domain.ErrInvalidQueue
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.rooms[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sub := newSubscription()
	f := newFeed(onAppend)
	for _, rec := range r.queues[q] {
		f.push(rec)
	}
	r.candidateSubs[q][sub] = f
	sub.stop = func() {
		st.mu.Lock()
		delete(r.candidateSubs[q], sub)
		st.mu.Unlock()
		f.close()
	}
	return sub, nil
}

func (st *Store) SubscribeSession(ctx context.Context, id domain.SessionID, onChange func(domain.Session)) (core.Subscription, error) {
	return st.WatchSession(ctx, id, onChange)
}

// WatchSession is SubscribeSession returning the concrete handle.
func (st *Store) WatchSession(ctx context.Context, id domain.SessionID, onChange func(domain.Session)) (*Subscription, error) {
	if err := unavailable(ctx); err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.rooms[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sub := newSubscription()
	f := newFeed(onChange)
	f.push(copySession(r.session))
	r.sessionSubs[sub] = f
	sub.stop = func() {
		st.mu.Lock()
		delete(r.sessionSubs, sub)
		st.mu.Unlock()
		f.close()
	}
	return sub, nil
}

func (st *Store) ListCandidates(ctx context.Context, id domain.SessionID, q domain.Queue) ([]domain.CandidateRecord, error) {
	if err := unavailable(ctx); err != nil {
		return nil, err
	}
	if !q.Valid() {
		return nil, domain.ErrInvalidQueue
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.rooms[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := make([]domain.CandidateRecord, len(r.queues[q]))
	copy(out, r.queues[q])
	return out, nil
}

// DeleteCandidate removes one record. Missing rooms or records are not an error.
func (st *Store) DeleteCandidate(ctx context.Context, id domain.SessionID, q domain.Queue, candidateID string) error {
	if err := unavailable(ctx); err != nil {
		return err
	}
	if !q.Valid() {
		return domain.ErrInvalidQueue
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.rooms[id]
	if !ok {
		return nil
	}
	recs := r.queues[q]
	for i, rec := range recs {
		if rec.ID == candidateID {
			r.queues[q] = append(recs[:i:i], recs[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteSession removes the room and ends every subscription on it.
// Deleting a missing room is not an error.
func (st *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	if err := unavailable(ctx); err != nil {
		return err
	}
	st.mu.Lock()
	r, ok := st.rooms[id]
	if !ok {
		st.mu.Unlock()
		return nil
	}
	delete(st.rooms, id)
	var subs []*Subscription
	for sub := range r.sessionSubs {
		subs = append(subs, sub)
	}
	for _, m := range r.candidateSubs {
		for sub := range m {
			subs = append(subs, sub)
		}
	}
	st.mu.Unlock()

	// stop() re-takes st.mu, so subscriptions are ended outside the lock.
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	log.Info().Str("module", "store.memory").Str("session_id", string(id)).Int("subscriptions", len(subs)).Msg("deleted session")
	return nil
}

// Len reports the number of live rooms.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.rooms)
}
