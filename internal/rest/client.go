// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

// Package rest is the HTTP transport layer: a small verb-oriented client
// plus a retrying decorator. Callers treat a non-2xx response as data, not
// as an error; a Go error means the request never produced a response.
package rest

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the outcome of one completed HTTP exchange.
type Response struct {
	Code   int
	Body   []byte
	Header http.Header
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Code >= http.StatusOK && r.Code < http.StatusMultipleChoices
}

//go:generate mockgen -destination=../mock/mock_rest.go -package=mock github.com/syncbox/syncbox/internal/rest Client

// Client issues requests against the sync server. Path segments are joined
// with "/" and escaped individually.
type Client interface {
	Get(ctx context.Context, path ...string) (*Response, error)
	GetWithQuery(ctx context.Context, query url.Values, path ...string) (*Response, error)
	Put(ctx context.Context, body []byte, path ...string) (*Response, error)
	Post(ctx context.Context, body []byte, path ...string) (*Response, error)
	Delete(ctx context.Context, path ...string) (*Response, error)
}

// ClientConfig configures the resty-backed Client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type httpClient struct {
	client *resty.Client
}

// NewClient builds the production Client on top of resty.
func NewClient(cfg ClientConfig) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &httpClient{client: cli}
}

func (h *httpClient) Get(ctx context.Context, path ...string) (*Response, error) {
	return h.execute(h.client.R().SetContext(ctx), resty.MethodGet, path)
}

func (h *httpClient) GetWithQuery(ctx context.Context, query url.Values, path ...string) (*Response, error) {
	req := h.client.R().SetContext(ctx)
	for key, values := range query {
		for _, v := range values {
			req.SetQueryParam(key, v)
		}
	}
	return h.execute(req, resty.MethodGet, path)
}

func (h *httpClient) Put(ctx context.Context, body []byte, path ...string) (*Response, error) {
	req := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return h.execute(req, resty.MethodPut, path)
}

func (h *httpClient) Post(ctx context.Context, body []byte, path ...string) (*Response, error) {
	req := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return h.execute(req, resty.MethodPost, path)
}

func (h *httpClient) Delete(ctx context.Context, path ...string) (*Response, error) {
	return h.execute(h.client.R().SetContext(ctx), resty.MethodDelete, path)
}

func (h *httpClient) execute(req *resty.Request, method string, path []string) (*Response, error) {
	resp, err := req.Execute(method, joinPath(path))
	if err != nil {
		return nil, err
	}
	return &Response{
		Code:   resp.StatusCode(),
		Body:   resp.Body(),
		Header: resp.Header(),
	}, nil
}

func joinPath(segments []string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}
