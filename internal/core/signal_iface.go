package core

import (
	"context"

	"github.com/dkeye/Duplex/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Subscription is a live change feed. Unsubscribe stops delivery;
// a callback already running may still complete.
type Subscription interface {
	Unsubscribe()
}

// SignalChannel abstracts the shared out-of-band store both peers can reach.
type SignalChannel interface {
	// CreateSession stores a new room holding only the offer and returns its id.
	CreateSession(ctx context.Context, offer domain.Descriptor) (domain.SessionID, error)
	GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	// SetAnswer writes the answer once; it never touches the offer.
	SetAnswer(ctx context.Context, id domain.SessionID, answer domain.Descriptor) error
	AppendCandidate(ctx context.Context, id domain.SessionID, q domain.Queue, c webrtc.ICECandidateInit) error
	// SubscribeCandidates delivers every record already in q, then each later append, in order.
	SubscribeCandidates(ctx context.Context, id domain.SessionID, q domain.Queue, onAppend func(domain.CandidateRecord)) (Subscription, error)
	// SubscribeSession delivers the current record, then every change to it.
	SubscribeSession(ctx context.Context, id domain.SessionID, onChange func(domain.Session)) (Subscription, error)
	ListCandidates(ctx context.Context, id domain.SessionID, q domain.Queue) ([]domain.CandidateRecord, error)
	DeleteCandidate(ctx context.Context, id domain.SessionID, q domain.Queue, candidateID string) error
	DeleteSession(ctx context.Context, id domain.SessionID) error
}
