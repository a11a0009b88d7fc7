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
	"time"

	"tcm-cbr/pkg/metrics"
)

// RateLimitedClient 在底层 Client 外包一层限流与指标上报
type RateLimitedClient struct {
	inner   Client
	limiter *RateLimiter
}

func NewRateLimitedClient(inner Client, limiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.call(ctx, func() (string, error) {
		return c.inner.Generate(ctx, prompt, options)
	})
}

func (c *RateLimitedClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	return c.call(ctx, func() (string, error) {
		return c.inner.Chat(ctx, messages, options)
	})
}

func (c *RateLimitedClient) call(ctx context.Context, fn func() (string, error)) (string, error) {
	provider := c.inner.Provider()
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, provider); err != nil {
			return "", err
		}
		defer c.limiter.Release(provider)
	}
	start := time.Now()
	out, err := fn()
	metrics.LLMDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMFailTotal.WithLabelValues(provider).Inc()
	}
	return out, err
}

func (c *RateLimitedClient) Model() string    { return c.inner.Model() }
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

func (c *RateLimitedClient) SetModel(model string)   { c.inner.SetModel(model) }
func (c *RateLimitedClient) SetAPIKey(apiKey string) { c.inner.SetAPIKey(apiKey) }
