package cli

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppiankov/policydeck/internal/config"
	"github.com/ppiankov/policydeck/internal/mtls"
	"github.com/ppiankov/policydeck/internal/policy"
	"github.com/ppiankov/policydeck/internal/push"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push one policy to the service over mutual TLS",
	Long: `Submit a single policy record as a create request.

The channel is mutually authenticated: the client presents a certificate
and verifies the server against a trusted CA. Credentials come from the
config file or the --cert/--key/--ca flags, or from the SPIFFE Workload
API when --spiffe-socket is set. The service assigns the record id.

--insecure skips server verification. It exists for diagnosing broken
trust chains against test services and is never implied: a failed
credential load is an error, not a downgrade.`,
	Example: `  # Push with file credentials
  policydeck push --endpoint https://policies.internal:8443/policies \
    --cert client.crt --key client.key --ca ca.pem \
    --app-name "Test Tool" --protocol TCP --port 8080 --action ALLOW

  # Push with a SPIFFE-issued identity
  policydeck push --spiffe-socket /run/spire/sockets/agent.sock \
    --app-name "Test Tool" --protocol TCP --port 8080 --action ALLOW`,
	RunE: runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().String("config", "", "Path to config file")
	pushCmd.Flags().String("endpoint", "", "Policy create endpoint (overrides config)")
	pushCmd.Flags().String("app-name", "", "Application name")
	pushCmd.Flags().String("protocol", "", "Transport protocol (TCP, UDP, ICMP)")
	pushCmd.Flags().Int("port", 0, "Port (0 for portless protocols)")
	pushCmd.Flags().String("action", "", "Action (ALLOW or DENY)")
	pushCmd.Flags().String("cert", "", "Client certificate path (overrides config)")
	pushCmd.Flags().String("key", "", "Client key path (overrides config)")
	pushCmd.Flags().String("ca", "", "Server CA bundle path (overrides config)")
	pushCmd.Flags().String("spiffe-socket", "", "SPIFFE workload API socket (overrides config)")
	pushCmd.Flags().Bool("insecure", false, "Skip server verification (diagnostics only)")
	pushCmd.Flags().String("socks5", "", "Route the push through a SOCKS5 proxy (host:port)")

	for _, f := range []string{"app-name", "protocol", "action"} {
		if err := pushCmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
}

func runPush(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	endpoint, _ := cmd.Flags().GetString("endpoint") //nolint:errcheck // flag registered above
	if endpoint == "" {
		endpoint = cfg.PushEndpoint
	}
	if endpoint == "" {
		return fmt.Errorf("no push endpoint: set --endpoint or pushEndpoint in the config")
	}

	rec, err := recordFromFlags(cmd)
	if err != nil {
		return err
	}

	tlsCfg, cleanup, err := buildTLS(cmd, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // best-effort release of the SPIFFE stream
	}

	var opts []push.Option
	socks5, _ := cmd.Flags().GetString("socks5") //nolint:errcheck // flag registered above
	if socks5 != "" {
		dial, err := push.SOCKS5Dialer(socks5)
		if err != nil {
			return err
		}
		opts = append(opts, push.WithDialer(dial))
	}

	client := push.NewClient(endpoint, tlsCfg, opts...)
	created, err := client.Push(cmd.Context(), rec)
	if err != nil {
		return err
	}

	slog.Info("policy created", "id", created.ID, "app", created.AppName,
		"protocol", created.Protocol, "port", created.Port, "action", created.Action)
	fmt.Fprintf(cmd.OutOrStdout(), "Created policy %d: %s %s port %d %s\n",
		created.ID, created.AppName, created.Protocol, created.Port, created.Action) //nolint:errcheck // best-effort output
	return nil
}

func recordFromFlags(cmd *cobra.Command) (policy.Record, error) {
	appName, _ := cmd.Flags().GetString("app-name")  //nolint:errcheck // flag registered above
	protocol, _ := cmd.Flags().GetString("protocol") //nolint:errcheck // flag registered above
	port, _ := cmd.Flags().GetInt("port")            //nolint:errcheck // flag registered above
	action, _ := cmd.Flags().GetString("action")     //nolint:errcheck // flag registered above

	if action != policy.ActionAllow && action != policy.ActionDeny {
		return policy.Record{}, fmt.Errorf("action must be %s or %s, got %q", policy.ActionAllow, policy.ActionDeny, action)
	}
	if port < 0 || port > 65535 {
		return policy.Record{}, fmt.Errorf("port must be 0-65535, got %d", port)
	}

	return policy.Record{AppName: appName, Protocol: protocol, Port: port, Action: action}, nil
}

// buildTLS resolves the secure-channel configuration in priority order:
// explicit --insecure, SPIFFE socket, file credentials. Partial flag sets
// fall back to the config file paths.
func buildTLS(cmd *cobra.Command, cfg *config.Config) (*tls.Config, func() error, error) {
	insecure, _ := cmd.Flags().GetBool("insecure") //nolint:errcheck // flag registered above
	if insecure {
		slog.Warn("server verification disabled; the channel is NOT mutually authenticated")
		return mtls.InsecureClientTLS(), nil, nil
	}

	socket, _ := cmd.Flags().GetString("spiffe-socket") //nolint:errcheck // flag registered above
	if socket == "" {
		socket = cfg.SPIFFESocket
	}
	if socket != "" {
		tlsCfg, closeFn, err := mtls.SPIFFETLS(cmd.Context(), socket)
		if err != nil {
			return nil, nil, err
		}
		return tlsCfg, closeFn, nil
	}

	creds := mtls.Credentials{
		CertPath: cfg.TLS.Cert,
		KeyPath:  cfg.TLS.Key,
		CAPath:   cfg.TLS.CA,
	}
	if v, _ := cmd.Flags().GetString("cert"); v != "" { //nolint:errcheck // flag registered above
		creds.CertPath = v
	}
	if v, _ := cmd.Flags().GetString("key"); v != "" { //nolint:errcheck // flag registered above
		creds.KeyPath = v
	}
	if v, _ := cmd.Flags().GetString("ca"); v != "" { //nolint:errcheck // flag registered above
		creds.CAPath = v
	}

	if creds.CertPath == "" && creds.KeyPath == "" && creds.CAPath == "" {
		return nil, nil, fmt.Errorf("no credentials: set --cert/--key/--ca, tls paths in the config, or --spiffe-socket")
	}

	tlsCfg, err := creds.ClientTLS()
	if err != nil {
		return nil, nil, err
	}
	return tlsCfg, nil, nil
}
