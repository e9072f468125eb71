package reliability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrDailyQuotaExceeded is returned by Acquire when the rolling daily cap
// is exhausted. Callers must not retry until the calendar day changes.
var ErrDailyQuotaExceeded = fmt.Errorf("daily request quota exhausted")

// RateLimiter paces calls to one generation backend. It enforces a minimum
// inter-call interval derived from a requests-per-minute limit and,
// optionally, a requests-per-day cap tracked against the current calendar
// day. One instance is shared process-wide per backend because the quota
// belongs to the credential, not the caller.
type RateLimiter struct {
	pace *rate.Limiter
	rpd  int

	mu            sync.Mutex
	windowDay     string
	requestsToday int

	now func() time.Time
}

// RateLimiterOption configures optional limiter behavior.
type RateLimiterOption func(*RateLimiter)

// WithDailyCap adds a requests-per-day cap on top of rpm pacing.
func WithDailyCap(rpd int) RateLimiterOption {
	return func(l *RateLimiter) {
		if rpd > 0 {
			l.rpd = rpd
		}
	}
}

// WithClock overrides the limiter's time source. Test hook.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter creates a limiter that allows rpm requests per minute.
func NewRateLimiter(rpm int, opts ...RateLimiterOption) *RateLimiter {
	if rpm < 1 {
		rpm = 1
	}
	interval := time.Duration(float64(time.Minute) / float64(rpm))

	l := &RateLimiter{
		pace: rate.NewLimiter(rate.Every(interval), 1),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowDay = l.today()
	return l
}

// Acquire reserves a daily slot, then blocks cooperatively for the pacing
// interval. When the daily cap is exhausted it fails immediately, without
// queuing behind another caller's pacing wait: the lock only guards the
// counters, never the wait itself. A cancelled wait returns its slot.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if err := l.reserveDaily(); err != nil {
		return err
	}

	if err := l.pace.Wait(ctx); err != nil {
		l.releaseDaily()
		return err
	}
	return nil
}

func (l *RateLimiter) reserveDaily() error {
	if l.rpd == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	if today != l.windowDay {
		l.windowDay = today
		l.requestsToday = 0
	}
	if l.requestsToday >= l.rpd {
		return fmt.Errorf("%w: limit %d requests/day", ErrDailyQuotaExceeded, l.rpd)
	}
	l.requestsToday++
	return nil
}

func (l *RateLimiter) releaseDaily() {
	if l.rpd == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.today() == l.windowDay && l.requestsToday > 0 {
		l.requestsToday--
	}
}

func (l *RateLimiter) today() string {
	return l.now().Format("2006-01-02")
}
