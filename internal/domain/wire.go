package domain

import "github.com/pion/webrtc/v4"

// Request and response bodies of the signaling store HTTP API.

type CreateRoomRequest struct {
	Offer Descriptor `json:"offer"`
}

type CreateRoomResponse struct {
	ID SessionID `json:"id"`
}

type SetAnswerRequest struct {
	Answer Descriptor `json:"answer"`
}

type AppendCandidateRequest struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type AppendCandidateResponse struct {
	ID string `json:"id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Valid reports whether d carries both halves of a description.
func (d Descriptor) Valid() bool {
	return d.Type != "" && d.SDP != ""
}
