package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/adapters/store/memory"
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/dkeye/Duplex/internal/metrics"
)

// Limiter decides whether a client token may create another room.
type Limiter interface {
	Allow(token string) bool
}

// RoomHandlers serves the room document API over an in-memory store.
type RoomHandlers struct {
	Store   *memory.Store
	Limiter Limiter
}

// Register mounts the REST routes on g (normally the /api/rooms group).
func (h *RoomHandlers) Register(g gin.IRouter) {
	g.POST("", h.createRoom)
	g.GET("/:id", h.getRoom)
	g.DELETE("/:id", h.deleteRoom)
	g.PUT("/:id/answer", h.setAnswer)

	q := g.Group("/:id/candidates/:queue", validQueue)
	q.POST("", h.appendCandidate)
	q.GET("", h.listCandidates)
	q.DELETE("/:cid", h.deleteCandidate)
}

func validQueue(c *gin.Context) {
	if !domain.Queue(c.Param("queue")).Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, domain.ErrorResponse{Error: domain.ErrInvalidQueue.Error()})
		return
	}
	c.Next()
}

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAnswerExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQueue):
		status = http.StatusBadRequest
	}
	c.JSON(status, domain.ErrorResponse{Error: err.Error()})
}

func (h *RoomHandlers) createRoom(c *gin.Context) {
	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Offer.Valid() {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "missing or invalid offer"})
		return
	}
	if h.Limiter != nil && !h.Limiter.Allow(c.GetString("client_token")) {
		metrics.RoomsRejectedTotal.Inc()
		c.JSON(http.StatusTooManyRequests, domain.ErrorResponse{Error: "too many rooms"})
		return
	}
	id, err := h.Store.CreateSession(c.Request.Context(), req.Offer)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.RoomsCreatedTotal.Inc()
	metrics.ActiveRooms.Set(float64(h.Store.Len()))
	log.Info().Str("module", "transport.http").Str("session_id", string(id)).Str("client", c.GetString("client_token")).Msg("room created")
	c.JSON(http.StatusCreated, domain.CreateRoomResponse{ID: id})
}

func (h *RoomHandlers) getRoom(c *gin.Context) {
	s, err := h.Store.GetSession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *RoomHandlers) deleteRoom(c *gin.Context) {
	if err := h.Store.DeleteSession(c.Request.Context(), domain.SessionID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	metrics.ActiveRooms.Set(float64(h.Store.Len()))
	c.Status(http.StatusNoContent)
}

func (h *RoomHandlers) setAnswer(c *gin.Context) {
	var req domain.SetAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Answer.Valid() {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "missing or invalid answer"})
		return
	}
	if err := h.Store.SetAnswer(c.Request.Context(), domain.SessionID(c.Param("id")), req.Answer); err != nil {
		metrics.AnswersTotal.WithLabelValues("rejected").Inc()
		fail(c, err)
		return
	}
	metrics.AnswersTotal.WithLabelValues("stored").Inc()
	c.Status(http.StatusNoContent)
}

func (h *RoomHandlers) appendCandidate(c *gin.Context) {
	var req domain.AppendCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "missing or invalid candidate"})
		return
	}
	q := domain.Queue(c.Param("queue"))
	rec, err := h.Store.Append(c.Request.Context(), domain.SessionID(c.Param("id")), q, req.Candidate)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.CandidatesAppendedTotal.WithLabelValues(string(q)).Inc()
	c.JSON(http.StatusCreated, domain.AppendCandidateResponse{ID: rec.ID})
}

func (h *RoomHandlers) listCandidates(c *gin.Context) {
	recs, err := h.Store.ListCandidates(c.Request.Context(), domain.SessionID(c.Param("id")), domain.Queue(c.Param("queue")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *RoomHandlers) deleteCandidate(c *gin.Context) {
	err := h.Store.DeleteCandidate(c.Request.Context(), domain.SessionID(c.Param("id")), domain.Queue(c.Param("queue")), c.Param("cid"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
