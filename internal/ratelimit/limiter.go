// Package ratelimit implements a process-local fixed-window rate limiter.
// It is a soft abuse deterrent, not a security boundary: counters live in
// this process only and are not shared across instances.
package ratelimit

import (
	"sync"
	"time"
)

// Endpoint classes. Unknown classes fall back to ClassDefault.
const (
	ClassGeneration = "generation"
	ClassCheckout   = "checkout"
	ClassLogin      = "login"
	ClassSignup     = "signup"
	ClassSocial     = "social"
	ClassDefault    = "default"
)

// Rule is the per-class window configuration.
type Rule struct {
	Window      time.Duration
	MaxRequests int
}

// DefaultRules mirrors the production limit table.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ClassGeneration: {Window: 60 * time.Second, MaxRequests: 10},
		ClassCheckout:   {Window: 60 * time.Second, MaxRequests: 5},
		ClassLogin:      {Window: 5 * time.Minute, MaxRequests: 5},
		ClassSignup:     {Window: time.Hour, MaxRequests: 3},
		ClassSocial:     {Window: 60 * time.Second, MaxRequests: 10},
		ClassDefault:    {Window: 60 * time.Second, MaxRequests: 100},
	}
}

// Result describes one limiter decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type window struct {
	start time.Time
	ttl   time.Duration
	count int
}

// Limiter is a process-scoped fixed-window counter keyed by
// (endpoint class, identifier). Construct one at startup and pass it to the
// handlers that need it.
type Limiter struct {
	mu    sync.Mutex
	rules map[string]Rule
	wins  map[string]*window
	now   func() time.Time
	stop  chan struct{}
	done  chan struct{}
}

// New builds a limiter with the given rules (nil means DefaultRules) and
// starts the background sweep that evicts expired windows.
func New(rules map[string]Rule) *Limiter {
	l := newLimiter(rules, time.Now)
	go l.sweepLoop(time.Minute)
	return l
}

// newLimiter is the test seam: injectable clock, no sweep goroutine.
func newLimiter(rules map[string]Rule, now func() time.Time) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	if _, ok := rules[ClassDefault]; !ok {
		rules[ClassDefault] = Rule{Window: 60 * time.Second, MaxRequests: 100}
	}
	return &Limiter{
		rules: rules,
		wins:  make(map[string]*window),
		now:   now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Check records a request against (class, identifier) and reports whether it
// is allowed. Rejected requests do not consume window capacity.
func (l *Limiter) Check(class, identifier string) Result {
	rule, ok := l.rules[class]
	if !ok {
		rule = l.rules[ClassDefault]
	}
	key := class + ":" + identifier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wins[key]
	if !ok || now.Sub(w.start) >= rule.Window {
		l.wins[key] = &window{start: now, ttl: rule.Window, count: 1}
		return Result{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests - 1,
			ResetIn:   rule.Window,
		}
	}

	resetIn := rule.Window - now.Sub(w.start)
	if w.count >= rule.MaxRequests {
		return Result{Allowed: false, Limit: rule.MaxRequests, Remaining: 0, ResetIn: resetIn}
	}
	w.count++
	return Result{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - w.count,
		ResetIn:   resetIn,
	}
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	close(l.stop)
	<-l.done
}

func (l *Limiter) sweepLoop(every time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep evicts windows that expired at least one full window ago.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.wins {
		if now.Sub(w.start) >= w.ttl {
			delete(l.wins, key)
		}
	}
}
