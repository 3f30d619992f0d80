package mtls

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

const spiffeDialTimeout = 10 * time.Second

// SPIFFETLS obtains the mutual-TLS client config from the SPIFFE Workload
// API instead of credential files. The returned close function releases
// the workload API stream and must be called when the channel is done.
func SPIFFETLS(ctx context.Context, socketPath string) (*tls.Config, func() error, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return nil, nil, &CredentialLoadError{Artifact: "SPIFFE workload socket", Path: socketPath, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, spiffeDialTimeout)
	defer cancel()

	source, err := workloadapi.NewX509Source(ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr("unix://"+socketPath)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to SPIFFE workload API: %w", err)
	}

	cfg := tlsconfig.MTLSClientConfig(source, source, tlsconfig.AuthorizeAny())
	return cfg, source.Close, nil
}
