// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures rate limits and cooldowns for tools.
type RateLimitConfig struct {
	DefaultPerMinute int
	PerTool          map[string]int
	Cooldowns        map[string]time.Duration
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		DefaultPerMinute: 60,
	}
}

const (
	maxTrackedLimiters = 256
	limiterIdleTTL     = 5 * time.Minute
)

// toolRateLimiter hands out one token bucket per tool name. Buckets idle for
// longer than limiterIdleTTL are dropped and recreated full.
type toolRateLimiter struct {
	cfg      RateLimitConfig
	limiters *expirable.LRU[string, *rate.Limiter]

	mu          sync.Mutex
	nextAllowed map[string]time.Time
	now         func() time.Time
}

func newToolRateLimiter(cfg RateLimitConfig) *toolRateLimiter {
	return &toolRateLimiter{
		cfg:         cfg,
		limiters:    expirable.NewLRU[string, *rate.Limiter](maxTrackedLimiters, nil, limiterIdleTTL),
		nextAllowed: make(map[string]time.Time),
		now:         time.Now,
	}
}

func (r *toolRateLimiter) perMinute(name string) int {
	if n, ok := r.cfg.PerTool[name]; ok {
		return n
	}
	return r.cfg.DefaultPerMinute
}

// Allow consumes a token for the named tool.
func (r *toolRateLimiter) Allow(name string) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if next, ok := r.nextAllowed[name]; ok && now.Before(next) {
		return fmt.Errorf("%w: retry after %s", ErrToolInCooldown, next.Sub(now).Round(time.Second))
	}

	if perMinute := r.perMinute(name); perMinute > 0 {
		limiter, ok := r.limiters.Get(name)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
			r.limiters.Add(name, limiter)
		}
		if !limiter.AllowN(now, 1) {
			return fmt.Errorf("%w: %s allows %d calls per minute", ErrToolRateLimited, name, perMinute)
		}
	}

	if cooldown := r.cfg.Cooldowns[name]; cooldown > 0 {
		r.nextAllowed[name] = now.Add(cooldown)
	}

	return nil
}
