// Package routing implements the request-to-tenant resolution pipeline:
// proxy trust evaluation, hostname extraction, base-path normalization and
// stripping, and the canonical base-path redirect.
package routing

import (
	"crypto/subtle"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brightvale/platform/pkg/telemetry"
)

// ProxySecretHeader carries the shared secret trusted proxies present.
const ProxySecretHeader = "X-BV-Proxy-Secret"

// rejectionLogWindow limits trust rejection warnings to one per offending
// host, so a misconfigured proxy cannot flood the logs.
const rejectionLogWindow = 10 * time.Minute

// TrustDecision is the per-request outcome of the proxy trust gate.
type TrustDecision struct {
	// TrustedHost is true when the host the request arrived through is on
	// the trusted proxy list (exact, wildcard, or platform default).
	TrustedHost bool
	// Authenticated is true when the proxy presented the shared secret, or
	// no secret is configured.
	Authenticated bool
}

// Allows reports whether the visitor-hostname fallback lookup may proceed.
func (d TrustDecision) Allows() bool {
	return d.TrustedHost && d.Authenticated
}

// TrustGate decides, per request, whether proxy-supplied visitor-hostname
// headers may be honored.
type TrustGate struct {
	trustedHosts  []string
	platformHosts map[string]struct{}
	secret        string
	logger        *slog.Logger
	metrics       *telemetry.Metrics

	warnNoSecret sync.Once

	mu         sync.Mutex
	rejections map[string]time.Time // host -> last warning time
}

// NewTrustGate builds a trust gate from the configured trusted-host list
// (exact entries or "*.suffix" wildcards), the default platform hosts, and
// the shared proxy secret. Logger and metrics may be nil.
func NewTrustGate(trustedHosts, platformHosts []string, secret string, logger *slog.Logger, metrics *telemetry.Metrics) *TrustGate {
	if logger == nil {
		logger = slog.Default()
	}
	platform := make(map[string]struct{}, len(platformHosts))
	for _, h := range platformHosts {
		platform[strings.ToLower(h)] = struct{}{}
	}
	hosts := make([]string, 0, len(trustedHosts))
	for _, h := range trustedHosts {
		hosts = append(hosts, strings.ToLower(h))
	}
	return &TrustGate{
		trustedHosts:  hosts,
		platformHosts: platform,
		secret:        secret,
		logger:        logger,
		metrics:       metrics,
		rejections:    make(map[string]time.Time),
	}
}

// Evaluate decides trust and authentication for the host the request arrived
// through and the secret it presented.
func (g *TrustGate) Evaluate(hostCandidate, presentedSecret string) TrustDecision {
	d := TrustDecision{
		TrustedHost:   g.isTrustedHost(hostCandidate),
		Authenticated: g.isAuthenticated(presentedSecret),
	}
	if g.metrics != nil {
		g.metrics.RecordTrustDecision(d.TrustedHost, d.Authenticated)
	}
	return d
}

// IsPlatformHost reports whether the hostname is a recognized default
// platform host.
func (g *TrustGate) IsPlatformHost(hostname string) bool {
	_, ok := g.platformHosts[strings.ToLower(hostname)]
	return ok
}

func (g *TrustGate) isTrustedHost(hostname string) bool {
	host := strings.ToLower(hostname)
	if host == "" {
		return false
	}
	if g.IsPlatformHost(host) {
		return true
	}
	for _, entry := range g.trustedHosts {
		if matchesHostEntry(host, entry) {
			return true
		}
	}
	return false
}

// matchesHostEntry matches a hostname against a trusted-list entry. Wildcard
// entries ("*.example.com") match any subdomain by suffix, with the dot
// required so "evilexample.com" cannot impersonate "*.example.com".
func matchesHostEntry(host, entry string) bool {
	if suffix, ok := strings.CutPrefix(entry, "*"); ok {
		return strings.HasSuffix(host, suffix) && len(host) > len(suffix)
	}
	return host == entry
}

func (g *TrustGate) isAuthenticated(presentedSecret string) bool {
	if g.secret == "" {
		// Backward compatible: deployments predating the shared secret
		// keep working, but the gap is surfaced once at startup volume.
		g.warnNoSecret.Do(func() {
			g.logger.Warn("No proxy shared secret configured; visitor-hostname headers are accepted from any trusted host without authentication")
		})
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presentedSecret), []byte(g.secret)) == 1
}

// NoteRejectedFallback records that a visitor-hostname fallback was skipped
// for an untrusted or unauthenticated source. Logged, never an error: the
// request falls through to "no tenant" handling without leaking the trust
// boundary to the caller.
func (g *TrustGate) NoteRejectedFallback(hostCandidate, visitorHostname string, d TrustDecision) {
	host := strings.ToLower(hostCandidate)

	g.mu.Lock()
	last, seen := g.rejections[host]
	now := time.Now()
	shouldLog := !seen || now.Sub(last) >= rejectionLogWindow
	if shouldLog {
		g.rejections[host] = now
	}
	g.mu.Unlock()

	if shouldLog {
		g.logger.Warn("Skipping visitor-hostname fallback for untrusted proxy",
			"source_host", hostCandidate,
			"visitor_host", visitorHostname,
			"trusted", d.TrustedHost,
			"authenticated", d.Authenticated,
		)
	}
}

// Cleanup drops rejection-log entries older than the warning window.
func (g *TrustGate) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-rejectionLogWindow)
	for host, last := range g.rejections {
		if last.Before(cutoff) {
			delete(g.rejections, host)
		}
	}
}

// StartCleanupRoutine starts a background goroutine that periodically evicts
// stale rejection-log entries.
func (g *TrustGate) StartCleanupRoutine(interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				g.Cleanup()
			case <-stopCh:
				return
			}
		}
	}()
}
