// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig Provider 维度的限流配置
type LimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// RateLimiter 按 provider 限流：RPS + 并发许可
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*providerLimiter
	defaults LimitConfig
}

type providerLimiter struct {
	requests  *rate.Limiter
	semaphore chan struct{}
}

// NewRateLimiter 创建限流器，configs 为 provider -> 配置
func NewRateLimiter(configs map[string]LimitConfig, defaults *LimitConfig) *RateLimiter {
	def := LimitConfig{RequestsPerMinute: 600, MaxConcurrent: 10}
	if defaults != nil {
		def = *defaults
	}
	l := &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: def,
	}
	for provider, cfg := range configs {
		l.limiters[provider] = newProviderLimiter(cfg)
	}
	return l
}

func newProviderLimiter(cfg LimitConfig) *providerLimiter {
	p := &providerLimiter{}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		p.requests = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		p.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return p
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.RLock()
	p, ok := l.limiters[provider]
	l.mu.RUnlock()
	if ok {
		return p
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok = l.limiters[provider]; ok {
		return p
	}
	p = newProviderLimiter(l.defaults)
	l.limiters[provider] = p
	return p
}

// Acquire 阻塞直到获得执行许可，调用方必须在请求完成后调用 Release
func (l *RateLimiter) Acquire(ctx context.Context, provider string) error {
	p := l.get(provider)
	if p.requests != nil {
		if err := p.requests.Wait(ctx); err != nil {
			return err
		}
	}
	if p.semaphore != nil {
		select {
		case p.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发许可
func (l *RateLimiter) Release(provider string) {
	p := l.get(provider)
	if p.semaphore != nil {
		select {
		case <-p.semaphore:
		default:
		}
	}
}
