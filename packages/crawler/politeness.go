package crawler

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Politeness spaces out successive requests to the same origin by a base
// delay plus random jitter. Different origins do not wait on each other.
type Politeness struct {
	delay  time.Duration
	jitter time.Duration

	mu      sync.Mutex
	origins map[string]*originState
}

// originState pairs the limiter with the earliest time the next request may
// start. The jitter granted to one request pushes next out, so the following
// request is never scheduled closer than delay to it.
type originState struct {
	limiter *rate.Limiter
	next    time.Time
}

func NewPoliteness(delay, jitter time.Duration) *Politeness {
	return &Politeness{
		delay:   delay,
		jitter:  jitter,
		origins: make(map[string]*originState),
	}
}

// schedule reserves a slot for origin and returns the time it starts.
func (p *Politeness) schedule(origin string, now time.Time) (*rate.Reservation, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.origins[origin]
	if !ok {
		st = &originState{limiter: rate.NewLimiter(rate.Every(p.delay), 1)}
		p.origins[origin] = st
	}

	r := st.limiter.ReserveN(now, 1)
	at := now.Add(r.DelayFrom(now))
	if at.After(now) && p.jitter > 0 {
		at = at.Add(time.Duration(rand.Int63n(int64(p.jitter))))
	}
	if at.Before(st.next) {
		at = st.next
	}
	st.next = at.Add(p.delay)
	return r, at
}

// Wait blocks until a request to origin is allowed or ctx is done.
func (p *Politeness) Wait(ctx context.Context, origin string) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}
	now := time.Now()
	r, at := p.schedule(origin, now)
	wait := at.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OriginOf returns scheme://host for rawURL, or rawURL itself when it does not parse.
func OriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
