package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duplex/internal/domain"
)

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func recvRecord(t *testing.T, ch <-chan domain.CandidateRecord) domain.CandidateRecord {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for candidate")
		return domain.CandidateRecord{}
	}
}

func TestCreateThenGetReturnsOfferVerbatim(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	offer := domain.Descriptor{Type: "offer", SDP: "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"}

	id, err := st.CreateSession(ctx, offer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != id {
		t.Fatalf("id=%q, want %q", got.ID, id)
	}
	if got.Offer != offer {
		t.Fatalf("offer=%+v, want %+v", got.Offer, offer)
	}
	if got.HasAnswer() {
		t.Fatalf("answer present before callee wrote it")
	}
}

func TestGetUnknownSession(t *testing.T) {
	st := NewStore()
	if _, err := st.GetSession(context.Background(), "does-not-exist"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err=%v, want ErrSessionNotFound", err)
	}
}

func TestSetAnswerIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	offer := domain.Descriptor{Type: "offer", SDP: "offer-sdp"}
	id, _ := st.CreateSession(ctx, offer)

	if err := st.SetAnswer(ctx, id, domain.Descriptor{Type: "answer", SDP: "a1"}); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := st.SetAnswer(ctx, id, domain.Descriptor{Type: "answer", SDP: "a2"}); !errors.Is(err, domain.ErrAnswerExists) {
		t.Fatalf("second answer err=%v, want ErrAnswerExists", err)
	}

	got, _ := st.GetSession(ctx, id)
	if got.Offer != offer {
		t.Fatalf("offer changed: %+v", got.Offer)
	}
	if got.Answer == nil || got.Answer.SDP != "a1" {
		t.Fatalf("answer=%+v, want a1", got.Answer)
	}

	// Returned records must not alias store state.
	got.Answer.SDP = "mutated"
	again, _ := st.GetSession(ctx, id)
	if again.Answer.SDP != "a1" {
		t.Fatalf("store state mutated through returned record")
	}
}

func TestSubscribeCandidatesDeliversSnapshotThenAppends(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	id, _ := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "x"})

	if err := st.AppendCandidate(ctx, id, domain.QueueFromCaller, cand("c1")); err != nil {
		t.Fatalf("append: %v", err)
	}

	ch := make(chan domain.CandidateRecord, 16)
	sub, err := st.SubscribeCandidates(ctx, id, domain.QueueFromCaller, func(r domain.CandidateRecord) { ch <- r })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	for _, c := range []string{"c2", "c3"} {
		if err := st.AppendCandidate(ctx, id, domain.QueueFromCaller, cand(c)); err != nil {
			t.Fatalf("append %s: %v", c, err)
		}
	}
	// Other queue must not leak into this subscription.
	_ = st.AppendCandidate(ctx, id, domain.QueueFromCallee, cand("other"))

	for _, want := range []string{"c1", "c2", "c3"} {
		rec := recvRecord(t, ch)
		if rec.Candidate.Candidate != want {
			t.Fatalf("got %q, want %q", rec.Candidate.Candidate, want)
		}
		if rec.Queue != domain.QueueFromCaller {
			t.Fatalf("queue=%q", rec.Queue)
		}
	}
	select {
	case rec := <-ch:
		t.Fatalf("unexpected record %+v", rec)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	id, _ := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "x"})

	ch := make(chan domain.CandidateRecord, 16)
	sub, err := st.SubscribeCandidates(ctx, id, domain.QueueFromCallee, func(r domain.CandidateRecord) { ch <- r })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()

	_ = st.AppendCandidate(ctx, id, domain.QueueFromCallee, cand("late"))
	select {
	case rec := <-ch:
		t.Fatalf("delivered after unsubscribe: %+v", rec)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeSessionSeesAnswer(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	id, _ := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "x"})

	ch := make(chan domain.Session, 4)
	sub, err := st.SubscribeSession(ctx, id, func(s domain.Session) { ch <- s })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	first := <-ch
	if first.HasAnswer() {
		t.Fatalf("initial snapshot has answer")
	}
	_ = st.SetAnswer(ctx, id, domain.Descriptor{Type: "answer", SDP: "y"})
	select {
	case s := <-ch:
		if !s.HasAnswer() || s.Answer.SDP != "y" {
			t.Fatalf("snapshot=%+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no change delivered")
	}
}

func TestDeleteSessionEndsSubscriptionsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	id, _ := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "x"})

	sub, err := st.WatchCandidates(ctx, id, domain.QueueFromCaller, func(domain.CandidateRecord) {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := st.DeleteSession(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatalf("subscription not ended by delete")
	}
	if err := st.DeleteSession(ctx, id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if st.Len() != 0 {
		t.Fatalf("len=%d", st.Len())
	}
	if err := st.AppendCandidate(ctx, id, domain.QueueFromCaller, cand("c")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("append after delete err=%v", err)
	}
}

func TestListAndDeleteCandidates(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	id, _ := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "x"})
	for _, c := range []string{"a", "b", "c"} {
		_ = st.AppendCandidate(ctx, id, domain.QueueFromCallee, cand(c))
	}

	recs, err := st.ListCandidates(ctx, id, domain.QueueFromCallee)
	if err != nil || len(recs) != 3 {
		t.Fatalf("list: %v len=%d", err, len(recs))
	}
	if err := st.DeleteCandidate(ctx, id, domain.QueueFromCallee, recs[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteCandidate(ctx, id, domain.QueueFromCallee, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	recs, _ = st.ListCandidates(ctx, id, domain.QueueFromCallee)
	if len(recs) != 2 || recs[0].Candidate.Candidate != "a" || recs[1].Candidate.Candidate != "c" {
		t.Fatalf("after delete: %+v", recs)
	}
}

func TestInvalidQueue(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	id, _ := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "x"})
	if err := st.AppendCandidate(ctx, id, domain.Queue("sideways"), cand("c")); !errors.Is(err, domain.ErrInvalidQueue) {
		t.Fatalf("err=%v, want ErrInvalidQueue", err)
	}
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	st := NewStore()
	id, _ := st.CreateSession(context.Background(), domain.Descriptor{Type: "offer", SDP: "o"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := map[string]func() error{
		"create": func() error { _, err := st.CreateSession(ctx, domain.Descriptor{Type: "offer", SDP: "o"}); return err },
		"get":    func() error { _, err := st.GetSession(ctx, id); return err },
		"answer": func() error { return st.SetAnswer(ctx, id, domain.Descriptor{Type: "answer", SDP: "a"}) },
		"append": func() error { return st.AppendCandidate(ctx, id, domain.QueueFromCaller, cand("c")) },
		"list":   func() error { _, err := st.ListCandidates(ctx, id, domain.QueueFromCaller); return err },
		"delete candidate": func() error {
			return st.DeleteCandidate(ctx, id, domain.QueueFromCaller, "x")
		},
		"watch candidates": func() error {
			_, err := st.SubscribeCandidates(ctx, id, domain.QueueFromCaller, func(domain.CandidateRecord) {})
			return err
		},
		"watch session": func() error {
			_, err := st.SubscribeSession(ctx, id, func(domain.Session) {})
			return err
		},
		"delete session": func() error { return st.DeleteSession(ctx, id) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, domain.ErrStoreUnavailable) {
				t.Fatalf("err=%v, want ErrStoreUnavailable", err)
			}
		})
	}

	s, err := st.GetSession(context.Background(), id)
	if err != nil || s.HasAnswer() {
		t.Fatalf("canceled calls changed the room: session=%+v err=%v", s, err)
	}
}
