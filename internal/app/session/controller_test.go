package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

type fixture struct {
	ctrl    *gomock.Controller
	capture *core.MockCaptureProvider
	engine  *MockNegotiator
	built   int
	c       *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		ctrl:    ctrl,
		capture: core.NewMockCaptureProvider(ctrl),
		engine:  NewMockNegotiator(ctrl),
	}
	f.c = NewController(f.capture, func() Negotiator {
		f.built++
		return f.engine
	})
	return f
}

func (f *fixture) withLocal(t *testing.T) *core.TrackSet {
	t.Helper()
	local := &core.TrackSet{StreamID: "camera"}
	f.capture.EXPECT().AcquireCameraMic(gomock.Any()).Return(local, nil)
	if _, err := f.c.StartLocalCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	return local
}

func TestMediaDeniedBlocksCreateAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture.EXPECT().AcquireCameraMic(gomock.Any()).
		Return(nil, fmt.Errorf("camera: %w", domain.ErrMediaUnavailable))

	if _, err := f.c.StartLocalCapture(ctx); !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("err=%v, want ErrMediaUnavailable", err)
	}
	if f.c.Status() != StatusIdle {
		t.Fatalf("status=%s, want idle", f.c.Status())
	}
	if _, err := f.c.CreateSession(ctx); !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("create err=%v", err)
	}
	if err := f.c.JoinSession(ctx, "room"); !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("join err=%v", err)
	}
	if f.built != 0 {
		t.Fatalf("engine built without local media")
	}
}

func TestStartLocalCaptureReusesHeldMedia(t *testing.T) {
	f := newFixture(t)
	local := f.withLocal(t)

	got, err := f.c.StartLocalCapture(context.Background())
	if err != nil || got != local {
		t.Fatalf("second start=%v,%v want held set", got, err)
	}
	if f.c.Status() != StatusReady {
		t.Fatalf("status=%s, want ready", f.c.Status())
	}
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.withLocal(t)

	f.engine.EXPECT().Create(gomock.Any(), local).Return(domain.SessionID("room-1"), nil)
	id, err := f.c.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "room-1" {
		t.Fatalf("id=%q", id)
	}
	if f.c.Status() != StatusInSession {
		t.Fatalf("status=%s, want in-session", f.c.Status())
	}

	if _, err := f.c.CreateSession(ctx); !errors.Is(err, domain.ErrAlreadyInSession) {
		t.Fatalf("second create err=%v, want ErrAlreadyInSession", err)
	}
	if err := f.c.JoinSession(ctx, "other"); !errors.Is(err, domain.ErrAlreadyInSession) {
		t.Fatalf("join while in session err=%v, want ErrAlreadyInSession", err)
	}
	if f.built != 1 {
		t.Fatalf("engines built=%d, want 1", f.built)
	}
}

func TestFailedNegotiationReenablesActions(t *testing.T) {
	tests := []struct {
		name string
		run  func(f *fixture, local *core.TrackSet) error
		want error
	}{
		{
			name: "create store down",
			run: func(f *fixture, local *core.TrackSet) error {
				f.engine.EXPECT().Create(gomock.Any(), local).
					Return(domain.SessionID(""), fmt.Errorf("create session: %w", domain.ErrStoreUnavailable))
				_, err := f.c.CreateSession(context.Background())
				return err
			},
			want: domain.ErrStoreUnavailable,
		},
		{
			name: "join unknown room",
			run: func(f *fixture, local *core.TrackSet) error {
				f.engine.EXPECT().Join(gomock.Any(), domain.SessionID("does-not-exist"), local).
					Return(fmt.Errorf("get session: %w", domain.ErrSessionNotFound))
				return f.c.JoinSession(context.Background(), "does-not-exist")
			},
			want: domain.ErrSessionNotFound,
		},
		{
			name: "join rejected offer",
			run: func(f *fixture, local *core.TrackSet) error {
				f.engine.EXPECT().Join(gomock.Any(), domain.SessionID("room"), local).
					Return(fmt.Errorf("%w: set remote offer", domain.ErrNegotiationRejected))
				return f.c.JoinSession(context.Background(), "room")
			},
			want: domain.ErrNegotiationRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			local := f.withLocal(t)
			f.engine.EXPECT().Close(gomock.Any()).Return(nil)

			if err := tt.run(f, local); !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
			if f.c.Status() != StatusReady {
				t.Fatalf("status=%s, want ready", f.c.Status())
			}
		})
	}
}

func TestEndSessionReleasesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.withLocal(t)
	screen := &core.TrackSet{StreamID: "screen"}

	f.engine.EXPECT().Create(gomock.Any(), local).Return(domain.SessionID("room"), nil)
	f.capture.EXPECT().AcquireScreen(gomock.Any()).Return(screen, nil)
	f.engine.EXPECT().AttachTracks(screen).Return(nil)

	if _, err := f.c.CreateSession(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.c.AddScreenShare(ctx); err != nil {
		t.Fatalf("screen share: %v", err)
	}

	gomock.InOrder(
		f.engine.EXPECT().Close(gomock.Any()).Return(errors.New("delete session: store down")),
		f.capture.EXPECT().ReleaseAll(screen),
		f.capture.EXPECT().ReleaseAll(local),
	)
	f.c.EndSession(ctx)
	if f.c.Status() != StatusIdle {
		t.Fatalf("status=%s, want idle", f.c.Status())
	}

	// Nothing left to release; no further calls are expected.
	f.c.EndSession(ctx)
}

func TestEndSessionWithoutSession(t *testing.T) {
	f := newFixture(t)
	f.c.EndSession(context.Background())

	local := f.withLocal(t)
	f.capture.EXPECT().ReleaseAll(local)
	f.c.EndSession(context.Background())
	if f.c.Status() != StatusIdle {
		t.Fatalf("status=%s, want idle", f.c.Status())
	}
}

func TestScreenShare(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)
		if err := f.c.AddScreenShare(context.Background()); !errors.Is(err, domain.ErrNoSession) {
			t.Fatalf("err=%v, want ErrNoSession", err)
		}
	})

	t.Run("denied keeps session", func(t *testing.T) {
		f := newFixture(t)
		local := f.withLocal(t)
		f.engine.EXPECT().Create(gomock.Any(), local).Return(domain.SessionID("room"), nil)
		f.capture.EXPECT().AcquireScreen(gomock.Any()).
			Return(nil, fmt.Errorf("screen: %w", domain.ErrMediaUnavailable))

		if _, err := f.c.CreateSession(context.Background()); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := f.c.AddScreenShare(context.Background()); !errors.Is(err, domain.ErrMediaUnavailable) {
			t.Fatalf("err=%v, want ErrMediaUnavailable", err)
		}
		if f.c.Status() != StatusInSession {
			t.Fatalf("status=%s, want in-session", f.c.Status())
		}
	})

	t.Run("attach failure releases screen", func(t *testing.T) {
		f := newFixture(t)
		local := f.withLocal(t)
		screen := &core.TrackSet{StreamID: "screen"}
		f.engine.EXPECT().Create(gomock.Any(), local).Return(domain.SessionID("room"), nil)
		f.capture.EXPECT().AcquireScreen(gomock.Any()).Return(screen, nil)
		f.engine.EXPECT().AttachTracks(screen).Return(domain.ErrNegotiationRejected)
		f.capture.EXPECT().ReleaseAll(screen)

		if _, err := f.c.CreateSession(context.Background()); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := f.c.AddScreenShare(context.Background()); !errors.Is(err, domain.ErrNegotiationRejected) {
			t.Fatalf("err=%v", err)
		}
	})
}
