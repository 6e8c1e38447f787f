// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrMediaUnavailable reports a denied or absent capture device.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrSessionNotFound reports a join or lookup with an unknown room id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps any failed signaling store operation.
	ErrStoreUnavailable = errors.New("signaling store unavailable")
	// ErrNegotiationRejected reports a description or candidate refused by the transport.
	ErrNegotiationRejected = errors.New("negotiation rejected")
	// ErrAlreadyInSession reports create/join while a session is active.
	ErrAlreadyInSession = errors.New("already in session")
	// ErrAnswerExists reports a second answer write; the first one wins.
	ErrAnswerExists = errors.New("answer already set")
	// ErrNoSession reports an operation that needs a live endpoint.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidQueue reports a candidate queue name that is neither side.
	ErrInvalidQueue = errors.New("invalid candidate queue")
)

// NewSessionID returns a fresh store-generated room identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewCandidateID returns a fresh identifier for one queued candidate.
func NewCandidateID() string {
	return uuid.NewString()
}
