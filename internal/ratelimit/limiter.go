// Package ratelimit is a fixed-window request limiter for the upload
// API. Upload traffic is limited per principal by subscription tier,
// with an IP fallback for unauthenticated requests.
package ratelimit

import (
	"sync"
	"time"

	"mediakeep/internal/quota"
)

type Config struct {
	Window time.Duration

	// Uploads per window by tier.
	UploadFree    int
	UploadPremium int
	UploadPro     int

	// Requests per window for unauthenticated traffic, keyed by IP.
	AnonIP int
}

func DefaultConfig() Config {
	return Config{
		Window:        time.Minute,
		UploadFree:    30,
		UploadPremium: 120,
		UploadPro:     300,
		AnonIP:        20,
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   int64
	ResetIn   int64
}

type counter struct {
	windowStart int64
	count       int
}

type Limiter struct {
	cfg     Config
	windowS int64

	mu      sync.Mutex
	entries map[string]counter
}

func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		windowS: int64(cfg.Window.Seconds()),
		entries: make(map[string]counter, 4096),
	}
}

// TakePrincipal counts one upload request against the principal's tier
// allowance.
func (l *Limiter) TakePrincipal(now time.Time, principal, tier string) Result {
	return l.take(now, "p:"+principal, l.tierLimit(tier))
}

// TakeIP counts one request against the anonymous per-IP allowance.
func (l *Limiter) TakeIP(now time.Time, ip string) Result {
	return l.take(now, "ip:"+ip, l.cfg.AnonIP)
}

func (l *Limiter) take(now time.Time, bucket string, limit int) Result {
	if limit <= 0 {
		return Result{Allowed: true, ResetAt: now.Unix()}
	}
	if l.windowS <= 0 {
		l.windowS = 60
	}
	unixNow := now.Unix()
	windowStart := unixNow / l.windowS * l.windowS
	resetAt := windowStart + l.windowS

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[bucket]
	if !ok || entry.windowStart != windowStart {
		entry = counter{windowStart: windowStart}
	}

	allowed := entry.count < limit
	if allowed {
		entry.count++
	}

	remaining := limit - entry.count
	if remaining < 0 {
		remaining = 0
	}
	l.entries[bucket] = entry

	if len(l.entries) > 100000 {
		l.cleanup(windowStart - l.windowS*2)
	}

	resetIn := resetAt - unixNow
	if resetIn < 0 {
		resetIn = 0
	}
	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		ResetIn:   resetIn,
	}
}

func (l *Limiter) tierLimit(tier string) int {
	switch tier {
	case quota.TierPro:
		return l.cfg.UploadPro
	case quota.TierPremium:
		return l.cfg.UploadPremium
	default:
		return l.cfg.UploadFree
	}
}

func (l *Limiter) cleanup(olderThanWindowStart int64) {
	for k, v := range l.entries {
		if v.windowStart <= olderThanWindowStart {
			delete(l.entries, k)
		}
	}
}
