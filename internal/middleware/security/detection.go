// Package security resolves client addresses behind proxies, flags probing
// traffic and sets response hardening headers.
package security

import (
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
)

// Metrics counts detector events since start.
type Metrics struct {
	SuspiciousRequests int64 `json:"suspicious_requests"`
	InvalidAddresses   int64 `json:"invalid_addresses"`
}

// rule reports whether r looks like probing traffic.
type rule struct {
	name  string
	match func(r *http.Request) bool
}

var (
	probeFragments = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", "etc/passwd", "cmd.exe",
		"<script", "javascript:", "eval(", "union select",
	}
	// curl and HTTP libraries are normal API clients.
	scannerAgents  = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}
	refusedMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	rules = []rule{
		{"probe_path", func(r *http.Request) bool { return hasFragment(r.URL.Path, probeFragments) }},
		{"probe_query", func(r *http.Request) bool { return hasFragment(unescapedQuery(r), probeFragments) }},
		{"scanner_agent", func(r *http.Request) bool { return hasFragment(r.UserAgent(), scannerAgents) }},
		{"refused_method", func(r *http.Request) bool { return slices.Contains(refusedMethods, r.Method) }},
		{"oversized_url", func(r *http.Request) bool { return len(r.URL.String()) > 2048 }},
		{"proxy_chain", func(r *http.Request) bool { return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 }},
	}
)

func hasFragment(s string, fragments []string) bool {
	s = strings.ToLower(s)
	return slices.ContainsFunc(fragments, func(f string) bool { return strings.Contains(s, f) })
}

func unescapedQuery(r *http.Request) string {
	if q, err := url.QueryUnescape(r.URL.RawQuery); err == nil {
		return q
	}
	return r.URL.RawQuery
}

// Detector flags suspicious requests. Forwarding headers are only honoured
// when the peer is a trusted proxy.
type Detector struct {
	trusted []netip.Prefix

	suspicious atomic.Int64
	invalid    atomic.Int64
}

// NewDetector trusts loopback and private ranges plus any extra prefixes.
func NewDetector(extra ...netip.Prefix) *Detector {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
	}
	return &Detector{trusted: append(trusted, extra...)}
}

// Inspect returns the name of the first rule r trips, or "".
func (d *Detector) Inspect(r *http.Request) string {
	for _, rl := range rules {
		if rl.match(r) {
			d.suspicious.Add(1)
			return rl.name
		}
	}
	return ""
}

// Middleware logs suspicious requests and answers refused methods with 405.
// Other flagged requests still reach the router.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := d.Inspect(r)
		if reason == "" {
			next.ServeHTTP(w, r)
			return
		}
		slog.WarnContext(r.Context(), "Suspicious request",
			"component", "security",
			"rule", reason,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", d.ExtractClientIP(r),
			"user_agent", r.UserAgent())
		if reason == "refused_method" {
			w.Header().Set("Allow", "GET, POST, PUT, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the caller's address. X-Forwarded-For (first hop)
// and then X-Real-IP are used only when the peer is trusted.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		addr, aerr := netip.ParseAddr(r.RemoteAddr)
		if aerr != nil {
			d.invalid.Add(1)
			return r.RemoteAddr
		}
		peer = netip.AddrPortFrom(addr, 0)
	}
	addr := peer.Addr().Unmap()
	if !d.trustedPeer(addr) {
		return addr.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if fwd, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return fwd.String()
		}
		d.invalid.Add(1)
	}
	if fwd, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return fwd.String()
	}
	return addr.String()
}

func (d *Detector) trustedPeer(addr netip.Addr) bool {
	return slices.ContainsFunc(d.trusted, func(p netip.Prefix) bool { return p.Contains(addr) })
}

// Metrics returns a snapshot of the counters.
func (d *Detector) Metrics() Metrics {
	return Metrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidAddresses:   d.invalid.Load(),
	}
}
