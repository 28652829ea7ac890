package identity

import (
	"net"
	"net/http"
	"strings"
)

// ForwardedForHeader is the proxy chain header.
const ForwardedForHeader = "X-Forwarded-For"

const fallbackAddress = "127.0.0.1"

// Resolver finds the client address of a request.
type Resolver struct {
	// TrustedProxyCount is the number of reverse proxies in front of the
	// service that append to X-Forwarded-For. Zero ignores the header.
	TrustedProxyCount int
}

// NewResolver creates a resolver trusting count proxy hops.
func NewResolver(count int) *Resolver {
	if count < 0 {
		count = 0
	}
	return &Resolver{TrustedProxyCount: count}
}

// ClientIP returns the resolved client address for r.
func (res *Resolver) ClientIP(r *http.Request) string {
	if res.TrustedProxyCount > 0 {
		if chain := forwardedChain(r.Header.Values(ForwardedForHeader)); len(chain) > 0 {
			idx := max(0, len(chain)-res.TrustedProxyCount)
			return chain[idx]
		}
	}
	return peerAddress(r.RemoteAddr)
}

// IPHash returns HashIP of the resolved client address.
func (res *Resolver) IPHash(r *http.Request) string {
	return HashIP(res.ClientIP(r))
}

// forwardedChain flattens every X-Forwarded-For header into one ordered list.
func forwardedChain(values []string) []string {
	var chain []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				chain = append(chain, part)
			}
		}
	}
	return chain
}

func peerAddress(remoteAddr string) string {
	if remoteAddr == "" {
		return fallbackAddress
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	if host == "" {
		return fallbackAddress
	}
	return host
}
