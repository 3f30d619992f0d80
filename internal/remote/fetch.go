// Package remote fetches the policy collection from the management service.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/policydeck/internal/policy"
)

const defaultTimeout = 15 * time.Second

// maxErrBody caps how much of an error response body is kept for reporting.
const maxErrBody = 4096

// NetworkError means the endpoint was unreachable (DNS, dial, TLS, timeout).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError means the endpoint answered but not with a usable policy
// list: a non-2xx status or a body that does not decode.
type ProtocolError struct {
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding response from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.Status, e.Body)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Source reads the full policy collection from one endpoint.
type Source struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	URL    string
}

// Fetch retrieves the policy list. Single attempt, no retry: failures are
// the caller's to surface, and the user triggers the next refresh.
func (s *Source) Fetch(ctx context.Context) (policy.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, http.NoBody)
	if err != nil {
		return policy.Snapshot{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return policy.Snapshot{}, &NetworkError{URL: s.URL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody)) //nolint:errcheck // best-effort detail
		return policy.Snapshot{}, &ProtocolError{URL: s.URL, Status: resp.StatusCode, Body: string(body)}
	}

	var records []policy.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return policy.Snapshot{}, &ProtocolError{URL: s.URL, Err: err}
	}

	return policy.Snapshot{At: time.Now(), Policies: records}, nil
}
