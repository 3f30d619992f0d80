package push

import (
	"fmt"

	"golang.org/x/net/proxy"
)

// SOCKS5Dialer builds a DialContextFunc that routes connections through a
// SOCKS5 proxy at addr. Useful when the policy service only resolves
// inside a private network reachable via a jump relay.
func SOCKS5Dialer(addr string) (DialContextFunc, error) {
	socksDialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
	}
	ctxDialer, ok := socksDialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support DialContext")
	}
	return ctxDialer.DialContext, nil
}
