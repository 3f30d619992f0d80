// Package mtls builds client TLS configurations for the policy push
// channel: file-based mutual TLS, a SPIFFE Workload API source, and an
// explicitly named insecure diagnostic mode.
package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// CredentialLoadError means a local credential artifact was missing or
// unreadable. It is raised before any network activity.
type CredentialLoadError struct {
	Artifact string // "client certificate", "client key", "CA bundle"
	Path     string
	Err      error
}

func (e *CredentialLoadError) Error() string {
	return fmt.Sprintf("loading %s from %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *CredentialLoadError) Unwrap() error { return e.Err }

// Credentials are the three artifacts of the mutually authenticated path.
// Paths come from configuration, never embedded literals.
type Credentials struct {
	CertPath string
	KeyPath  string
	CAPath   string
}

// ClientTLS reads the credential files and builds a reusable tls.Config
// carrying the client keypair and the trusted CA for the remote peer.
// Files are read once here; no handles stay open afterwards.
func (c Credentials) ClientTLS() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		// LoadX509KeyPair reads both files; report the one that failed.
		if _, statErr := os.Stat(c.CertPath); statErr != nil {
			return nil, &CredentialLoadError{Artifact: "client certificate", Path: c.CertPath, Err: statErr}
		}
		if _, statErr := os.Stat(c.KeyPath); statErr != nil {
			return nil, &CredentialLoadError{Artifact: "client key", Path: c.KeyPath, Err: statErr}
		}
		return nil, &CredentialLoadError{Artifact: "client certificate", Path: c.CertPath, Err: err}
	}

	caPEM, err := os.ReadFile(c.CAPath)
	if err != nil {
		return nil, &CredentialLoadError{Artifact: "CA bundle", Path: c.CAPath, Err: err}
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, &CredentialLoadError{Artifact: "CA bundle", Path: c.CAPath, Err: fmt.Errorf("no certificates found in PEM")}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// InsecureClientTLS returns a config that skips peer verification.
// Diagnostic use only: it is a separate constructor so the insecure path
// can never be the silent fallback when credential loading fails, and
// callers are expected to log loudly when they pick it.
func InsecureClientTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // explicit opt-in diagnostic mode
		MinVersion:         tls.VersionTLS12,
	}
}
