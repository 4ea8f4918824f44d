// Package ssrf validates webhook target URLs against the scheme/host
// blocklists required before a push-notification config may be stored.
package ssrf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// blockedV4 is the table of disallowed IPv4 CIDR ranges.
var blockedV4 = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // includes the AWS metadata endpoint 169.254.169.254
	"0.0.0.0/32",
}

var blockedV6 = []string{
	"::1/128",
	"::/128",
	"fc00::/7",  // unique local
	"fe80::/10", // link-local
}

var blockedHostnameSuffixes = []string{
	".localhost",
	".local",
	".internal",
}

var blockedHostnameExact = []string{
	"localhost",
	"localhost.localdomain",
}

// Validate reports whether rawURL may be used as a webhook target. It
// returns a descriptive error naming the specific blocked class so callers
// and tests can assert intent.
func Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("webhook url does not parse: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("webhook url must use https, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("webhook url has no host")
	}

	if err := validateHostname(host); err != nil {
		return err
	}

	if ip := net.ParseIP(host); ip != nil {
		return validateIP(ip)
	}

	return nil
}

func validateHostname(host string) error {
	lower := strings.ToLower(host)

	for _, exact := range blockedHostnameExact {
		if lower == exact {
			return fmt.Errorf("webhook host %q is a loopback hostname", host)
		}
	}

	for _, suffix := range blockedHostnameSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return fmt.Errorf("webhook host %q matches blocked suffix %q", host, suffix)
		}
	}

	return nil
}

func validateIP(ip net.IP) error {
	if ip.IsMulticast() {
		return fmt.Errorf("webhook host %s is a multicast address", ip)
	}

	if ip4 := ip.To4(); ip4 != nil {
		if ip4.Equal(net.IPv4bcast) {
			return fmt.Errorf("webhook host %s is a broadcast address", ip)
		}
		for _, cidr := range blockedV4 {
			_, network, _ := net.ParseCIDR(cidr)
			if network.Contains(ip4) {
				return fmt.Errorf("webhook host %s is within blocked range %s", ip, cidr)
			}
		}
		return nil
	}

	for _, cidr := range blockedV6 {
		_, network, _ := net.ParseCIDR(cidr)
		if network.Contains(ip) {
			return fmt.Errorf("webhook host %s is within blocked range %s", ip, cidr)
		}
	}

	return nil
}
