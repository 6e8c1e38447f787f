package rtc_test

import (
	"context"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v4/vnet"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duplex/internal/adapters/capture"
	"github.com/dkeye/Duplex/internal/adapters/rtc"
	"github.com/dkeye/Duplex/internal/adapters/store/memory"
	"github.com/dkeye/Duplex/internal/app/media"
	"github.com/dkeye/Duplex/internal/app/negotiation"
	"github.com/dkeye/Duplex/internal/domain"
)

func newVNet(t *testing.T) (*vnet.Net, *vnet.Net) {
	t.Helper()
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		t.Fatalf("new net A: %v", err)
	}
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		t.Fatalf("new net B: %v", err)
	}
	if err := router.AddNet(netA); err != nil {
		t.Fatalf("add net A: %v", err)
	}
	if err := router.AddNet(netB); err != nil {
		t.Fatalf("add net B: %v", err)
	}
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	return netA, netB
}

func newFactory(t *testing.T, n *vnet.Net) *rtc.Factory {
	t.Helper()
	f, err := rtc.NewFactory(rtc.Options{
		ReserveMedia:      []string{"audio", "video"},
		ConfigureSettings: func(se *webrtc.SettingEngine) { se.SetNet(n) },
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return f
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPeersConnectAndExchangeMedia(t *testing.T) {
	ctx := context.Background()
	netA, netB := newVNet(t)
	store := memory.NewStore()
	devices := capture.NewProvider(capture.Devices{Audio: true, Video: true})

	caller := negotiation.New(store, newFactory(t, netA))
	callee := negotiation.New(store, newFactory(t, netB))

	localA, err := devices.AcquireCameraMic(ctx)
	if err != nil {
		t.Fatalf("capture A: %v", err)
	}
	localB, err := devices.AcquireCameraMic(ctx)
	if err != nil {
		t.Fatalf("capture B: %v", err)
	}

	id, err := caller.Create(ctx, localA)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := callee.Join(ctx, id, localB); err != nil {
		t.Fatalf("join: %v", err)
	}

	waitUntil(t, "both sides connected", func() bool {
		return caller.State() == negotiation.StateConnected && callee.State() == negotiation.StateConnected
	})
	waitUntil(t, "remote tracks on both sides", func() bool {
		return caller.Remote().Len() == 2 && callee.Remote().Len() == 2
	})
	waitUntil(t, "media flowing to the caller", func() bool {
		for _, tr := range caller.Remote().Tracks() {
			if tr.Packets == 0 {
				return false
			}
		}
		return true
	})

	sess, err := store.GetSession(ctx, id)
	if err != nil || !sess.HasAnswer() {
		t.Fatalf("session=%+v err=%v", sess, err)
	}
	for _, q := range []domain.Queue{domain.QueueFromCaller, domain.QueueFromCallee} {
		recs, err := store.ListCandidates(ctx, id, q)
		if err != nil || len(recs) == 0 {
			t.Fatalf("%s: %d records, err=%v", q, len(recs), err)
		}
	}

	callerRemote := caller.Remote().(*media.RemoteStream)
	calleeRemote := callee.Remote().(*media.RemoteStream)

	if err := callee.Close(ctx); err != nil {
		t.Fatalf("callee close: %v", err)
	}
	if err := caller.Close(ctx); err != nil {
		t.Fatalf("caller close: %v", err)
	}
	callerRemote.Wait()
	calleeRemote.Wait()
	if store.Len() != 0 {
		t.Fatalf("rooms left after teardown: %d", store.Len())
	}
	devices.ReleaseAll(localA)
	devices.ReleaseAll(localB)
	if devices.Live() != 0 {
		t.Fatalf("capture sets still live")
	}
}

func TestFactoryRejectsUnknownReservedKind(t *testing.T) {
	if _, err := rtc.NewFactory(rtc.Options{ReserveMedia: []string{"smell"}}); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

func TestDefaultOptionsConfiguration(t *testing.T) {
	cfg := rtc.DefaultOptions().Configuration()
	if cfg.ICECandidatePoolSize != 10 {
		t.Fatalf("pool size=%d", cfg.ICECandidatePoolSize)
	}
	if len(cfg.ICEServers) != 1 || len(cfg.ICEServers[0].URLs) != 2 {
		t.Fatalf("ice servers=%+v", cfg.ICEServers)
	}
}
