// Package transport builds the outbound HTTP client used for transfers.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/dnscache"
)

// Options tunes the transport. Zero durations fall back to defaults.
type Options struct {
	ForceHTTP2          bool
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	Proxy               string // proxy URL, "" = from environment
}

// NewTransport returns a tuned *http.Transport with connection pooling and
// optional DNS caching.
func NewTransport(resolver *dnscache.Resolver, opts Options) (*http.Transport, error) {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   opts.ForceHTTP2,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if opts.IdleConnTimeout > 0 {
		t.IdleConnTimeout = opts.IdleConnTimeout
	}
	if opts.TLSHandshakeTimeout > 0 {
		t.TLSHandshakeTimeout = opts.TLSHandshakeTimeout
	}
	if opts.Proxy != "" {
		u, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		t.Proxy = http.ProxyURL(u)
	}
	if resolver != nil {
		t.DialContext = dialer(resolver)
	}
	return t, nil
}

// dialer resolves hosts through the cache and dials the first address.
func dialer(resolver *dnscache.Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no addresses for %q", host)
		}
		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
	}
}

// NewClient wraps rt in an *http.Client without an overall timeout; each
// transfer enforces its own.
func NewClient(rt http.RoundTripper) *http.Client {
	return &http.Client{Transport: rt}
}
