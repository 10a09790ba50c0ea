// Package transport builds the HTTP transports used to reach the WordPress
// origin: the reverse proxy's pooled transport and the REST client's
// Chrome-fingerprint transport.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Upstream TLS modes selectable in configuration.
const (
	ModeChrome   = "chrome"
	ModeStandard = "standard"
)

// New returns the REST client round tripper for mode. Unknown modes use
// the Chrome fingerprint.
func New(mode string, timeout time.Duration) http.RoundTripper {
	if mode == ModeStandard {
		return NewOriginTransport(timeout)
	}
	return NewChromeTransport(timeout)
}

// Managed WordPress hosts put the REST API behind CDNs that rate limit
// Go's TLS fingerprint (JA3). The Chrome transport dials with uTLS using
// Chrome's ClientHello and speaks whatever protocol ALPN settles on.

// errHTTP1Only is returned from the h2 dialer when the origin picked
// http/1.1 during ALPN.
var errHTTP1Only = errors.New("transport: origin negotiated http/1.1")

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint. Hosts that do not negotiate h2 are remembered and served
// over HTTP/1.1 from then on.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	t := &chromeTransport{http1Hosts: make(map[string]bool)}

	t.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			conn, err := dialChromeTLS(ctx, dialer, network, addr)
			if err != nil {
				return nil, err
			}
			if conn.ConnectionState().NegotiatedProtocol != http2.NextProtoTLS {
				conn.Close()
				t.markHTTP1(addr)
				return nil, errHTTP1Only
			}
			return conn, nil
		},
	}
	t.h1 = &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return t
}

// chromeTransport routes each request to the h2 or HTTP/1.1 transport.
type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport

	mu         sync.Mutex
	http1Hosts map[string]bool // keyed by host:port
}

func (t *chromeTransport) markHTTP1(addr string) {
	t.mu.Lock()
	t.http1Hosts[addr] = true
	t.mu.Unlock()
}

func (t *chromeTransport) isHTTP1(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.http1Hosts[addr]
}

// RoundTrip implements http.RoundTripper. Plain http and hosts known to
// lack h2 go straight to HTTP/1.1; a failed h2 attempt is retried over
// HTTP/1.1 only when the request can be replayed.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" || t.isHTTP1(hostPort(req)) {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if !replayable(req) {
		return nil, err
	}
	retry := req
	if req.Body != nil && req.GetBody != nil {
		body, gerr := req.GetBody()
		if gerr != nil {
			return nil, err
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}
	return t.h1.RoundTrip(retry)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func hostPort(req *http.Request) string {
	if req.URL.Port() != "" {
		return req.URL.Host
	}
	return net.JoinHostPort(req.URL.Hostname(), "443")
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (*utls.UConn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return tlsConn, nil
}

// NewOriginTransport creates the transport the reverse proxy uses to reach
// the origin. Compression is left to the proxy so HTML bodies can be
// rewritten, and responses must start within timeout.
func NewOriginTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
}
