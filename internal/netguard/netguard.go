// Package netguard builds the HTTP clients used for outbound fetches and
// validates remote URLs before any request is made. Feed URLs and enclosure
// URLs come from configuration and remote documents, so both are treated as
// untrusted input.
package netguard

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var allowedSchemes = []string{"http", "https"}

// blockedNetworks is matched by ValidateURL for literal IP hosts. Hostname
// targets are validated again at dial time by the safeurl client, which also
// covers DNS rebinding.
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// Guard produces outbound HTTP clients and performs URL validation.
type Guard struct {
	// AllowPrivateHosts disables the private-network restrictions. Meant
	// for local feeds and tests, never for production configuration.
	AllowPrivateHosts bool
}

// New returns a guard enforcing the default restrictions.
func New() *Guard {
	return &Guard{}
}

// NewClient returns the HTTP client for outbound fetches. With restrictions
// enabled the client refuses private, loopback, link-local and metadata
// addresses at dial time, after DNS resolution.
func (g *Guard) NewClient(timeout time.Duration) *http.Client {
	if g.AllowPrivateHosts {
		return &http.Client{Timeout: timeout}
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateURL statically checks a URL before any request is made: scheme,
// non-empty host, and literal IPs against the blocked ranges. Hostnames that
// resolve to blocked addresses are caught later by the client's dialer.
func (g *Guard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL %q", rawURL)
	}

	if g.AllowPrivateHosts {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip)
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
