// Package remote implements the signaling channel against the store
// server's HTTP and WebSocket API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

var _ core.SignalChannel = (*Client)(nil)

// Client talks to one store server. Every failure is reported as one of the
// domain sentinels; nothing is retried.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	token  string
	log    zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClientToken sends token as X-Client-Token so room creation is
// rate limited per peer rather than per connection.
func WithClientToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("signal url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("signal url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.With().Str("module", "store.remote").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func roomPath(id domain.SessionID, parts ...string) string {
	p := "/api/rooms/" + url.PathEscape(string(id))
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func queuePath(id domain.SessionID, q domain.Queue, parts ...string) string {
	return roomPath(id, append([]string{"candidates", string(q)}, parts...)...)
}

// statusError maps a non-2xx response onto the domain sentinels.
func statusError(method, path string, resp *http.Response) error {
	var body domain.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	detail := fmt.Sprintf("%s %s: %d %s", method, path, resp.StatusCode, body.Error)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrAnswerExists, detail)
	case http.StatusBadRequest:
		if body.Error == domain.ErrInvalidQueue.Error() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidQueue, detail)
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, detail)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrStoreUnavailable, method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Client-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", domain.ErrStoreUnavailable, method, path, err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, offer domain.Descriptor) (domain.SessionID, error) {
	var out domain.CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/api/rooms", domain.CreateRoomRequest{Offer: offer}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty room id", domain.ErrStoreUnavailable)
	}
	return out.ID, nil
}

func (c *Client) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var s domain.Session
	if err := c.do(ctx, http.MethodGet, roomPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) SetAnswer(ctx context.Context, id domain.SessionID, answer domain.Descriptor) error {
	return c.do(ctx, http.MethodPut, roomPath(id, "answer"), domain.SetAnswerRequest{Answer: answer}, nil)
}

func (c *Client) AppendCandidate(ctx context.Context, id domain.SessionID, q domain.Queue, ci webrtc.ICECandidateInit) error {
	if !q.Valid() {
		return domain.ErrInvalidQueue
	}
	return c.do(ctx, http.MethodPost, queuePath(id, q), domain.AppendCandidateRequest{Candidate: ci}, nil)
}

func (c *Client) ListCandidates(ctx context.Context, id domain.SessionID, q domain.Queue) ([]domain.CandidateRecord, error) {
	if !q.Valid() {
		return nil, domain.ErrInvalidQueue
	}
	var recs []domain.CandidateRecord
	if err := c.do(ctx, http.MethodGet, queuePath(id, q), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) DeleteCandidate(ctx context.Context, id domain.SessionID, q domain.Queue, candidateID string) error {
	if !q.Valid() {
		return domain.ErrInvalidQueue
	}
	return c.do(ctx, http.MethodDelete, queuePath(id, q, candidateID), nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, id domain.SessionID) error {
	return c.do(ctx, http.MethodDelete, roomPath(id), nil, nil)
}

func (c *Client) SubscribeSession(ctx context.Context, id domain.SessionID, onChange func(domain.Session)) (core.Subscription, error) {
	sub, err := watch(ctx, c, roomPath(id, "watch"), onChange)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) SubscribeCandidates(ctx context.Context, id domain.SessionID, q domain.Queue, onAppend func(domain.CandidateRecord)) (core.Subscription, error) {
	if !q.Valid() {
		return nil, domain.ErrInvalidQueue
	}
	sub, err := watch(ctx, c, queuePath(id, q, "watch"), onAppend)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) wsURL(path string) string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String() + path
}

// Subscription is one open watch stream.
type Subscription struct {
	ws   *websocket.Conn
	once sync.Once

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "unsubscribe")
		_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.ws.Close()
	})
}

// Done is closed when the stream ends for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// watch dials path and decodes every frame as T, delivering in arrival order
// on a single goroutine. Only the dial honours ctx.
func watch[T any](ctx context.Context, c *Client, path string, fn func(T)) (*Subscription, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("X-Client-Token", c.token)
	}
	ws, resp, err := c.dialer.DialContext(ctx, c.wsURL(path), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, statusError(http.MethodGet, path, resp)
		}
		return nil, fmt.Errorf("%w: watch %s: %v", domain.ErrStoreUnavailable, path, err)
	}

	sub := &Subscription{ws: ws, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if sub.live() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.log.Warn().Err(err).Str("path", path).Msg("watch ended")
				}
				return
			}
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				c.log.Warn().Err(err).Str("path", path).Msg("bad watch frame")
				continue
			}
			if !sub.live() {
				return
			}
			fn(v)
		}
	}()
	return sub, nil
}
