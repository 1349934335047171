// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit gates every primitive call behind a two-layer token
// bucket: one global bucket shared by all primitives, and one bucket per
// primitive created lazily on first use. Both must have a token
// available before a call proceeds.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loom/internal/errkind"
)

// BucketConfig configures a single token bucket.
type BucketConfig struct {
	Capacity   float64
	RefillRate float64 // tokens per second
}

// Config configures the two-layer limiter: a global bucket plus
// per-primitive overrides, falling back to Default for primitives with
// no explicit entry.
type Config struct {
	Global  BucketConfig
	Default BucketConfig
	PerPrimitive map[string]BucketConfig
	Logger  *zap.Logger

	// TokensPerUnit scales an LLM call's estimated prompt token count
	// down to bucket units, so a call carrying a much larger prompt
	// costs more of the budget than a short one. Zero disables
	// token-weighted accounting; AcquireForText then costs a flat 1.
	TokensPerUnit int
}

// DefaultConfig mirrors the original runtime's conservative defaults:
// a generous global ceiling with a tighter per-primitive default.
func DefaultConfig() Config {
	return Config{
		Global:        BucketConfig{Capacity: 50, RefillRate: 10},
		Default:       BucketConfig{Capacity: 10, RefillRate: 2},
		Logger:        zap.NewNop(),
		TokensPerUnit: 500,
	}
}

type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
}

func newBucket(cfg BucketConfig) *tokenBucket {
	return &tokenBucket{capacity: cfg.Capacity, tokens: cfg.Capacity, refillRate: cfg.RefillRate, lastRefill: time.Now()}
}

func (b *tokenBucket) tryAcquire() bool {
	return b.tryAcquireN(1.0)
}

// tryAcquireN debits n tokens at once, refilling first. A request
// costing more than the bucket's full capacity can never succeed and
// is rejected outright rather than looping forever waiting for a
// refill that will never reach it.
func (b *tokenBucket) tryAcquireN(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.capacity {
		return false
	}
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

func (b *tokenBucket) available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	return min(b.capacity, b.tokens+elapsed*b.refillRate)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Permit is an unforgeable handle proving a primitive call was admitted.
type Permit struct {
	Primitive  string
	AcquiredAt time.Time
}

// Status reports available tokens for a primitive and the global layer,
// renderable as HTTP-style rate-limit response headers.
type Status struct {
	Primitive               string
	PrimitiveTokensAvail    float64
	GlobalTokensAvail       float64
	PrimitiveLimit          float64
	GlobalLimit             float64
}

// ToHeaders renders s as the X-RateLimit-* header set.
func (s Status) ToHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":         fmt.Sprintf("%.0f", s.PrimitiveLimit),
		"X-RateLimit-Remaining":     fmt.Sprintf("%.0f", s.PrimitiveTokensAvail),
		"X-RateLimit-Global-Limit":     fmt.Sprintf("%.0f", s.GlobalLimit),
		"X-RateLimit-Global-Remaining": fmt.Sprintf("%.0f", s.GlobalTokensAvail),
	}
}

// Limiter is the two-layer gate: acquiring a permit consumes one token
// from the global bucket and one from the named primitive's bucket.
type Limiter struct {
	mu         sync.Mutex
	config     Config
	global     *tokenBucket
	primitives map[string]*tokenBucket
	logger     *zap.Logger
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Limiter{
		config:     cfg,
		global:     newBucket(cfg.Global),
		primitives: make(map[string]*tokenBucket),
		logger:     cfg.Logger,
	}
}

func (l *Limiter) bucketFor(primitive string) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.primitives[primitive]
	if !ok {
		cfg := l.config.Default
		if override, ok := l.config.PerPrimitive[primitive]; ok {
			cfg = override
		}
		b = newBucket(cfg)
		l.primitives[primitive] = b
	}
	return b
}

// TryAcquire attempts to admit one call to primitive without blocking.
// The global bucket is checked first; either layer's denial returns a
// tagged Validation error naming which layer was exhausted.
func (l *Limiter) TryAcquire(primitive string) (*Permit, error) {
	if !l.global.tryAcquire() {
		return nil, errkind.New(errkind.Validation, "global rate limit exceeded").WithDetail("layer", "global")
	}
	b := l.bucketFor(primitive)
	if !b.tryAcquire() {
		return nil, errkind.New(errkind.Validation, "primitive rate limit exceeded").
			WithDetail("layer", "primitive").WithDetail("primitive", primitive)
	}
	return &Permit{Primitive: primitive, AcquiredAt: time.Now()}, nil
}

// TryAcquireForText admits one call to primitive, debiting bucket
// units proportional to text's estimated token count rather than a
// flat cost of one, so a call carrying a large prompt consumes more of
// the budget than a short one. Falls back to TryAcquire's flat cost
// when TokensPerUnit is unset.
func (l *Limiter) TryAcquireForText(primitive, text string) (*Permit, error) {
	if l.config.TokensPerUnit <= 0 {
		return l.TryAcquire(primitive)
	}
	tokens := GetTokenCounter().CountTokens(text)
	units := float64(tokens) / float64(l.config.TokensPerUnit)
	if units < 1.0 {
		units = 1.0
	}

	if !l.global.tryAcquireN(units) {
		return nil, errkind.New(errkind.Validation, "global rate limit exceeded").
			WithDetail("layer", "global").WithDetail("estimated_tokens", tokens)
	}
	b := l.bucketFor(primitive)
	if !b.tryAcquireN(units) {
		return nil, errkind.New(errkind.Validation, "primitive rate limit exceeded").
			WithDetail("layer", "primitive").WithDetail("primitive", primitive).WithDetail("estimated_tokens", tokens)
	}
	return &Permit{Primitive: primitive, AcquiredAt: time.Now()}, nil
}

// Acquire blocks, polling every 100ms, until both layers admit the call
// or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, primitive string) (*Permit, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p, err := l.TryAcquire(primitive); err == nil {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// AcquireWithTimeout blocks, polling every 50ms, until admitted or
// deadline elapses, returning a Timeout error on expiry.
func (l *Limiter) AcquireWithTimeout(ctx context.Context, primitive string, timeout time.Duration) (*Permit, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p, err := l.TryAcquire(primitive); err == nil {
			return p, nil
		}
		select {
		case <-deadlineCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errkind.New(errkind.Timeout, "rate limit acquire timed out").WithDetail("primitive", primitive)
		case <-ticker.C:
		}
	}
}

// StatusFor reports current token availability for primitive and the
// global layer.
func (l *Limiter) StatusFor(primitive string) Status {
	b := l.bucketFor(primitive)
	return Status{
		Primitive:            primitive,
		PrimitiveTokensAvail: b.available(),
		GlobalTokensAvail:    l.global.available(),
		PrimitiveLimit:       b.capacity,
		GlobalLimit:          l.global.capacity,
	}
}

// Shared wraps a Limiter so multiple owners can hold and pass around a
// cheap, clonable handle to the same underlying buckets.
type Shared struct {
	mu *sync.Mutex
	l  *Limiter
}

// NewShared constructs a Shared handle around a fresh Limiter.
func NewShared(cfg Config) Shared {
	return Shared{mu: &sync.Mutex{}, l: New(cfg)}
}

// Limiter returns the underlying limiter; safe to call concurrently from
// every clone of this Shared value.
func (s Shared) Limiter() *Limiter { return s.l }
