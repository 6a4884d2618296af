package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// maxUserAgentLen caps the User-Agent used for fingerprinting and logs
const maxUserAgentLen = 512

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []*net.IPNet
}

// NewIPConfig parses CIDR ranges of trusted proxies. A bare IP is treated as a single-host range.
func NewIPConfig(trustedProxies []string) (*IPConfig, error) {
	cfg := &IPConfig{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, ipNet)
	}
	return cfg, nil
}

// ClientInfo returns the client IP and a length-capped User-Agent
func ClientInfo(r *http.Request, config *IPConfig) (string, string) {
	userAgent := r.Header.Get("User-Agent")
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	return ExtractClientIP(r, config), userAgent
}

// ExtractClientIP extracts the real client IP address from the request.
// X-Forwarded-For and X-Real-IP are honoured only when the direct peer is a
// trusted proxy; otherwise anyone could pick their own rate-limit key.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		// Take the first valid entry of X-Forwarded-For
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}

func isTrustedProxy(ip string, trustedProxies []*net.IPNet) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}
	for _, ipNet := range trustedProxies {
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
