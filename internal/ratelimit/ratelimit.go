package ratelimit

import (
	"sync"
	"time"
)

// Token-bucket limiter. One instance guards one websocket connection's
// inbound event stream; CallerLimiters hands them out per HTTP caller.
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	return false
}

type callerEntry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// CallerLimiters keeps one limiter per caller key (remote address for the
// execute endpoint) and drops entries not seen for a while.
type CallerLimiters struct {
	entries map[string]*callerEntry
	rate    float64
	burst   int
	maxIdle time.Duration
	mu      sync.Mutex
	stop    chan struct{}
}

func NewCallerLimiters(rate float64, burst int) *CallerLimiters {
	cl := &CallerLimiters{
		entries: make(map[string]*callerEntry),
		rate:    rate,
		burst:   burst,
		maxIdle: 10 * time.Minute,
	}
	cl.stop = make(chan struct{})
	go cl.cleanup()
	return cl
}

// Allow reports whether the caller identified by key may proceed.
func (cl *CallerLimiters) Allow(key string) bool {
	cl.mu.Lock()
	entry, ok := cl.entries[key]
	if !ok {
		entry = &callerEntry{limiter: NewLimiter(cl.rate, cl.burst)}
		cl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	cl.mu.Unlock()

	return entry.limiter.Allow()
}

func (cl *CallerLimiters) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.entries)
}

func (cl *CallerLimiters) Stop() {
	close(cl.stop)
}

func (cl *CallerLimiters) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cl.maxIdle)
			cl.mu.Lock()
			for key, entry := range cl.entries {
				if entry.lastSeen.Before(cutoff) {
					delete(cl.entries, key)
				}
			}
			cl.mu.Unlock()
		}
	}
}
