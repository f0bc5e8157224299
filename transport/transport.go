// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a request unless Options.Timeout says otherwise.
const DefaultTimeout = 45 * time.Second

// Response is a received HTTP response. A non-2xx Response doubles as the
// error describing it.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

func (r *Response) IsError() bool {
	return r.Status < 200 || r.Status >= 300
}

func (r *Response) Error() string {
	return fmt.Sprintf("status code %d", r.Status)
}

// Close releases the body.
func (r *Response) Close() {
	if r.Body != nil {
		r.Body.Close()
	}
}

// ReadAll reads and closes the body.
func (r *Response) ReadAll() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

type Transporter interface {
	Get(ctx context.Context, url string) (*Response, error)
	Put(ctx context.Context, url string, body []byte, ct string) (*Response, error)
	PutJSON(ctx context.Context, url string, body []byte) (*Response, error)
}

// Options configures an HTTP transporter. An empty User sends no
// Authorization header.
type Options struct {
	BaseURL   string
	User      string
	Password  string
	UserAgent string
	Timeout   time.Duration
	RootCAs   *x509.CertPool
}

type httpTransporter struct {
	baseURL   string
	user      string
	pass      string
	userAgent string
	client    *http.Client
}

// NewHTTPTransporter returns a Transporter sending requests relative to
// opts.BaseURL.
func NewHTTPTransporter(opts Options) Transporter {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: 30 * time.Second,
			TLSClientConfig:     &tls.Config{RootCAs: opts.RootCAs},
		},
	}
	return &httpTransporter{opts.BaseURL, opts.User, opts.Password, opts.UserAgent, client}
}

func (ht *httpTransporter) do(ctx context.Context, method, url string, body []byte, ct string) (*Response, error) {
	var br io.Reader
	if body != nil {
		br = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, ht.baseURL+url, br)
	if err != nil {
		return nil, err
	}
	if ht.userAgent != "" {
		req.Header.Set("X-Signal-Agent", ht.userAgent)
		req.Header.Set("User-Agent", ht.userAgent)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if ht.user != "" {
		req.SetBasicAuth(ht.user, ht.pass)
	}
	resp, err := ht.client.Do(req)
	if err != nil {
		return nil, err
	}
	r := &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
	}

	log.Debugf("[siglink] %s %s %d", method, url, r.Status)

	return r, nil
}

func (ht *httpTransporter) Get(ctx context.Context, url string) (*Response, error) {
	return ht.do(ctx, http.MethodGet, url, nil, "")
}

func (ht *httpTransporter) Put(ctx context.Context, url string, body []byte, ct string) (*Response, error) {
	return ht.do(ctx, http.MethodPut, url, body, ct)
}

func (ht *httpTransporter) PutJSON(ctx context.Context, url string, body []byte) (*Response, error) {
	return ht.Put(ctx, url, body, "application/json")
}
