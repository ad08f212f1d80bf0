package mealvoice

import (
	"sync"
	"time"
)

// UsageSnapshot is a point-in-time view of the daily request counter.
type UsageSnapshot struct {
	Day      string `json:"day"`
	Requests int    `json:"requests"`
	Limit    int    `json:"limit"`
}

// UsageTracker counts remote analysis requests per calendar day.
// A limit of zero means unlimited. The host owns the tracker and calls ResetIfNewDay;
// nothing inside it schedules work on its own.
type UsageTracker struct {
	mu       sync.Mutex
	now      func() time.Time
	limit    int
	day      string
	requests int
}

func NewUsageTracker(limit int, now func() time.Time) *UsageTracker {
	if now == nil {
		now = time.Now
	}
	return &UsageTracker{
		now:   now,
		limit: limit,
		day:   dayKey(now()),
	}
}

// ResetIfNewDay zeroes the counter when the clock has moved past the tracked day.
func (u *UsageTracker) ResetIfNewDay() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if today := dayKey(u.now()); today != u.day {
		u.day = today
		u.requests = 0
	}
}

// Allow reserves one request if the daily limit permits it.
func (u *UsageTracker) Allow() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.limit > 0 && u.requests >= u.limit {
		return false
	}
	u.requests++
	return true
}

func (u *UsageTracker) Snapshot() UsageSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()

	return UsageSnapshot{Day: u.day, Requests: u.requests, Limit: u.limit}
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
