package signal

import (
	"sync"
	"time"
)

// sweepEvery bounds how many Allow calls pass between sweeps of idle tokens.
const sweepEvery = 256

// RoomRateLimiter caps how many rooms one client token may create per
// sliding interval.
type RoomRateLimiter struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	recent map[string][]time.Time
	calls  int
}

// NewRoomRateLimiter returns a limiter; limit <= 0 allows everything.
func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		limit:    limit,
		interval: interval,
		now:      time.Now,
		recent:   make(map[string][]time.Time),
	}
}

// expire drops stamps at or before cutoff; stamps are kept in ascending order.
func expire(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

func (rl *RoomRateLimiter) Allow(token string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.interval)
	rl.calls++
	if rl.calls%sweepEvery == 0 {
		rl.sweep(cutoff)
	}

	stamps := expire(rl.recent[token], cutoff)
	if len(stamps) >= rl.limit {
		rl.recent[token] = stamps
		return false
	}
	rl.recent[token] = append(stamps, now)
	return true
}

// sweep forgets tokens with no attempt inside the window.
func (rl *RoomRateLimiter) sweep(cutoff time.Time) {
	for token, stamps := range rl.recent {
		if len(expire(stamps, cutoff)) == 0 {
			delete(rl.recent, token)
		}
	}
}

// Tracked reports how many tokens currently hold history.
func (rl *RoomRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.recent)
}
