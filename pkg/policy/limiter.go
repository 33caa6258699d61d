package policy

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterPool keeps one cooldown limiter per principal. Limiters refill
// one send per cooldown window; the token is consumed only after the
// remote accepts the write, so a failed send does not start a window.
// While a send sits between check and acceptance the principal is marked
// in-flight, so concurrent sends cannot share one window.
type limiterPool struct {
	mu       sync.Mutex
	m        map[string]*rate.Limiter
	inflight map[string]struct{}
	cooldown time.Duration
}

// limiter returns the principal's limiter. Caller holds mu.
func (p *limiterPool) limiter(key string) *rate.Limiter {
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	l, ok := p.m[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(p.cooldown), 1)
		p.m[key] = l
	}
	return l
}

// remaining reports how long until key may send again without reserving
// the window.
func (p *limiterPool) remaining(key string, now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remainingLocked(key, now)
}

func (p *limiterPool) remainingLocked(key string, now time.Time) time.Duration {
	l := p.limiter(key)
	r := l.ReserveN(now, 1)
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if d <= 0 {
		if _, busy := p.inflight[key]; busy {
			return p.cooldown
		}
	}
	return d
}

// begin atomically checks the window and marks key in-flight. At most one
// send per key can sit between begin and commit/release; a second begin
// in that span is rejected as rate limited.
func (p *limiterPool) begin(key string, now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d := p.remainingLocked(key, now); d > 0 {
		return d, false
	}
	if p.inflight == nil {
		p.inflight = make(map[string]struct{})
	}
	p.inflight[key] = struct{}{}
	return 0, true
}

// release abandons an in-flight send without starting a window.
func (p *limiterPool) release(key string) {
	p.mu.Lock()
	delete(p.inflight, key)
	p.mu.Unlock()
}

// commit consumes the token, starting the cooldown window, and clears the
// in-flight mark.
func (p *limiterPool) commit(key string, now time.Time) {
	p.mu.Lock()
	p.limiter(key).AllowN(now, 1)
	delete(p.inflight, key)
	p.mu.Unlock()
}
