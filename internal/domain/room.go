package domain

import (
	"time"

	"github.com/pion/webrtc/v4"
)

type SessionID string

// Descriptor is the stored {type, sdp} half of an offer/answer exchange.
type Descriptor struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Session is one room record. Offer is written once at creation,
// Answer at most once by the callee.
type Session struct {
	ID        SessionID   `json:"id"`
	Offer     Descriptor  `json:"offer"`
	Answer    *Descriptor `json:"answer,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasAnswer reports whether the callee has written its answer.
func (s *Session) HasAnswer() bool {
	return s.Answer != nil
}

// CandidateRecord is one queued connectivity candidate.
type CandidateRecord struct {
	ID        string                  `json:"id"`
	Queue     Queue                   `json:"queue"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	CreatedAt time.Time               `json:"created_at"`
}

// DescriptorFrom converts a transport description into its stored shape.
func DescriptorFrom(sd webrtc.SessionDescription) Descriptor {
	return Descriptor{Type: sd.Type.String(), SDP: sd.SDP}
}

// SessionDescription converts the stored shape back for the transport.
func (d Descriptor) SessionDescription() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}
