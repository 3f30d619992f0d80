// Package push submits policy records to the management service over a
// mutually authenticated channel.
package push

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ppiankov/policydeck/internal/policy"
)

const defaultTimeout = 15 * time.Second

const maxErrBody = 4096

// TransportError means the secure channel could not be established:
// connection refused, TLS handshake failure, certificate rejection.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pushing to %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError means the service rejected the request. Status and body are
// kept so the caller can show exactly what the server said.
type RemoteError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

// DialContextFunc matches net.Dialer.DialContext; swapping it in lets a
// push ride a SOCKS5 tunnel or any other custom transport.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client pushes policies to one endpoint. The TLS config is built once
// (see the mtls package) and reused across Push calls.
type Client struct {
	endpoint string
	http     *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithDialer routes the underlying TCP connections through dial.
func WithDialer(dial DialContextFunc) Option {
	return func(c *Client) {
		c.http.Transport.(*http.Transport).DialContext = dial
	}
}

// NewClient builds a push client for endpoint using the given TLS config.
// tlsCfg may come from Credentials.ClientTLS, SPIFFETLS, or — for
// diagnostics only — InsecureClientTLS.
func NewClient(endpoint string, tlsCfg *tls.Config, opts ...Option) *Client {
	transport := &http.Transport{
		TLSClientConfig: tlsCfg,
		DialContext:     (&net.Dialer{Timeout: defaultTimeout}).DialContext,
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Transport: transport, Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Push submits one record as a create request and returns the service's
// version of it, including the assigned id. Single attempt; no retry.
func (c *Client) Push(ctx context.Context, rec policy.Record) (policy.Record, error) {
	payload := struct {
		AppName  string `json:"app_name"`
		Protocol string `json:"protocol"`
		Port     int    `json:"port"`
		Action   string `json:"action"`
	}{rec.AppName, rec.Protocol, rec.Port, rec.Action}

	body, err := json.Marshal(payload)
	if err != nil {
		return policy.Record{}, fmt.Errorf("encoding record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return policy.Record{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return policy.Record{}, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody)) //nolint:errcheck // best-effort detail
		return policy.Record{}, &RemoteError{Endpoint: c.endpoint, Status: resp.StatusCode, Body: string(detail)}
	}

	var created policy.Record
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return policy.Record{}, fmt.Errorf("decoding created record: %w", err)
	}
	return created, nil
}
