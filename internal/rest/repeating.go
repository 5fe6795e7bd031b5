// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package rest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/syncbox/syncbox/internal/logger"
)

// RepeatingConfig bounds the retry loop of a RepeatingClient.
type RepeatingConfig struct {
	// InitialDelay is the wait before the second attempt; it doubles per
	// attempt up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Attempts is the total number of tries including the first.
	Attempts uint64
}

func (c RepeatingConfig) withDefaults() RepeatingConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.Attempts == 0 {
		c.Attempts = 10
	}
	return c
}

// RepeatingClient decorates a Client with bounded exponential retries.
// Both transport errors and non-2xx responses are retried. When the retry
// budget is exhausted the last response (which may be nil) is returned with
// a nil error: exhaustion means "no data this round", never a failure that
// could crash the caller. Context cancellation is the exception and is
// reported as an error.
type RepeatingClient struct {
	inner  Client
	cfg    RepeatingConfig
	logger *logger.Logger
}

// NewRepeatingClient wraps inner with the retry policy in cfg.
func NewRepeatingClient(inner Client, cfg RepeatingConfig, log *logger.Logger) *RepeatingClient {
	return &RepeatingClient{inner: inner, cfg: cfg.withDefaults(), logger: log}
}

func (r *RepeatingClient) Get(ctx context.Context, path ...string) (*Response, error) {
	return r.do(ctx, func(ctx context.Context) (*Response, error) {
		return r.inner.Get(ctx, path...)
	})
}

func (r *RepeatingClient) GetWithQuery(ctx context.Context, query url.Values, path ...string) (*Response, error) {
	return r.do(ctx, func(ctx context.Context) (*Response, error) {
		return r.inner.GetWithQuery(ctx, query, path...)
	})
}

func (r *RepeatingClient) Put(ctx context.Context, body []byte, path ...string) (*Response, error) {
	return r.do(ctx, func(ctx context.Context) (*Response, error) {
		return r.inner.Put(ctx, body, path...)
	})
}

func (r *RepeatingClient) Post(ctx context.Context, body []byte, path ...string) (*Response, error) {
	return r.do(ctx, func(ctx context.Context) (*Response, error) {
		return r.inner.Post(ctx, body, path...)
	})
}

func (r *RepeatingClient) Delete(ctx context.Context, path ...string) (*Response, error) {
	return r.do(ctx, func(ctx context.Context) (*Response, error) {
		return r.inner.Delete(ctx, path...)
	})
}

func (r *RepeatingClient) do(ctx context.Context, call func(context.Context) (*Response, error)) (*Response, error) {
	var last *Response

	backoff := retry.WithMaxRetries(r.cfg.Attempts-1,
		retry.WithCappedDuration(r.cfg.MaxDelay,
			retry.NewExponential(r.cfg.InitialDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := call(ctx)
		if err != nil {
			last = nil
			return retry.RetryableError(err)
		}
		last = resp
		if !resp.OK() {
			return retry.RetryableError(fmt.Errorf("http %d", resp.Code))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn().
			Err(err).
			Str("func", "RepeatingClient.do").
			Uint64("attempts", r.cfg.Attempts).
			Msg("retry budget exhausted, giving up until next trigger")
	}

	return last, nil
}
