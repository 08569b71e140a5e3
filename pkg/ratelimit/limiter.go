// Package ratelimit implements the per-principal token bucket of spec
// §4.4. It is built on golang.org/x/time/rate (an indirect dependency of
// the teemuteemu-caddy-language-server example repo, promoted to direct
// here): rate.Limiter.ReserveN gives exactly the "refuse and report the
// time until cost tokens would be available" semantics the spec asks for,
// without hand-rolling bucket arithmetic.
package ratelimit

import (
	"sync"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"golang.org/x/time/rate"
	"lol.mleku.dev/log"
)

// DefaultRPM, DefaultMaxIdle and DefaultSweepInt are the default limiter
// parameters; the default burst (2*rpm) is computed in New.
const (
	DefaultRPM      = 60
	DefaultMaxIdle  = 600 * time.Second
	DefaultSweepInt = 300 * time.Second
)

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter is a process-local, per-principal token bucket rate limiter.
// There is no cross-node coordination, per spec §4.4.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rpm      int
	burst    int
	maxIdle  time.Duration
	sweepInt time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs a Limiter. burst defaults to 2*rpm when burst <= 0,
// per spec §4.4.
func New(rpm, burst int, maxIdle, sweepInterval time.Duration) *Limiter {
	if rpm <= 0 {
		rpm = DefaultRPM
	}
	if burst <= 0 {
		burst = 2 * rpm
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInt
	}
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		rpm:      rpm,
		burst:    burst,
		maxIdle:  maxIdle,
		sweepInt: sweepInterval,
		stop:     make(chan struct{}),
	}
	return l
}

func (l *Limiter) newBucket() *bucket {
	ratePerSecond := rate.Limit(float64(l.rpm) / 60.0)
	return &bucket{
		limiter:  rate.NewLimiter(ratePerSecond, l.burst),
		lastUsed: time.Now(),
	}
}

// Check atomically refills the named principal's bucket based on elapsed
// monotonic time, then tries to consume cost tokens. On refusal it returns
// a RATE_LIMITED apperr.Error and the duration until cost tokens would be
// available.
func (l *Limiter) Check(principal string, cost int) (retryAfter time.Duration, err error) {
	if cost <= 0 {
		cost = 1
	}
	l.mu.Lock()
	b, ok := l.buckets[principal]
	if !ok {
		b = l.newBucket()
		l.buckets[principal] = b
	}
	b.lastUsed = time.Now()
	reservation := b.limiter.ReserveN(b.lastUsed, cost)
	l.mu.Unlock()

	if !reservation.OK() {
		return 0, apperr.New(apperr.Quota, "RATE_LIMITED", "cost exceeds bucket capacity")
	}
	delay := reservation.DelayFrom(time.Now())
	if delay > 0 {
		reservation.CancelAt(time.Now())
		return delay, apperr.New(apperr.Quota, "RATE_LIMITED", "rate limit exceeded")
	}
	return 0, nil
}

// Sweep runs in a background goroutine, reaping buckets untouched for more
// than maxIdle, on the configured sweep interval, until Stop is called.
// This mirrors the teacher's pattern of a single ticker-driven goroutine
// tied to shutdown (pkg/database.New's expiration sweep).
func (l *Limiter) Sweep() {
	ticker := time.NewTicker(l.sweepInt)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.reapIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) reapIdle() {
	cutoff := time.Now().Add(-l.maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for principal, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, principal)
			log.T.F("ratelimit: reaped idle bucket for %s", principal)
		}
	}
}

// Stop terminates the background sweep goroutine. Safe to call more than
// once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Size returns the current number of tracked buckets, for tests and
// metrics.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
