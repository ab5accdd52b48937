package routing

import (
	"log/slog"
	"testing"
)

func newTestGate(trusted []string, secret string) *TrustGate {
	return NewTrustGate(trusted, []string{"brightvale.app"}, secret, slog.Default(), nil)
}

func TestTrustGateExactMatch(t *testing.T) {
	gate := newTestGate([]string{"proxy.example.com"}, "")

	if d := gate.Evaluate("proxy.example.com", ""); !d.TrustedHost {
		t.Error("expected exact match to be trusted")
	}
	if d := gate.Evaluate("other.example.com", ""); d.TrustedHost {
		t.Error("expected non-listed host to be untrusted")
	}
	if d := gate.Evaluate("PROXY.EXAMPLE.COM", ""); !d.TrustedHost {
		t.Error("expected host matching to be case-insensitive")
	}
}

func TestTrustGateWildcard(t *testing.T) {
	gate := newTestGate([]string{"*.example.com"}, "")

	if d := gate.Evaluate("sub.example.com", ""); !d.TrustedHost {
		t.Error("expected subdomain to match wildcard")
	}
	if d := gate.Evaluate("deep.sub.example.com", ""); !d.TrustedHost {
		t.Error("expected nested subdomain to match wildcard")
	}
	// The dot boundary is load-bearing: a registrable domain ending in the
	// same characters must not be trusted.
	if d := gate.Evaluate("evilexample.com", ""); d.TrustedHost {
		t.Error("evilexample.com must not match *.example.com")
	}
	if d := gate.Evaluate("example.com", ""); d.TrustedHost {
		t.Error("apex must not match *.example.com")
	}
}

func TestTrustGatePlatformHost(t *testing.T) {
	gate := newTestGate(nil, "")
	if d := gate.Evaluate("brightvale.app", ""); !d.TrustedHost {
		t.Error("expected default platform host to be trusted")
	}
	if !gate.IsPlatformHost("brightvale.app") {
		t.Error("expected IsPlatformHost to recognize the default host")
	}
}

func TestTrustGateAuthentication(t *testing.T) {
	// No secret configured: backward compatible, always authenticated.
	open := newTestGate(nil, "")
	if d := open.Evaluate("any.host", ""); !d.Authenticated {
		t.Error("expected authentication to pass with no secret configured")
	}

	gate := newTestGate([]string{"proxy.example.com"}, "s3cret")
	if d := gate.Evaluate("proxy.example.com", "s3cret"); !d.Authenticated {
		t.Error("expected matching secret to authenticate")
	}
	if d := gate.Evaluate("proxy.example.com", "wrong"); d.Authenticated {
		t.Error("expected wrong secret to fail authentication")
	}
	if d := gate.Evaluate("proxy.example.com", ""); d.Authenticated {
		t.Error("expected missing secret to fail authentication")
	}
}

func TestTrustDecisionAllows(t *testing.T) {
	cases := []struct {
		trusted, authed, want bool
	}{
		{true, true, true},
		{true, false, false},
		{false, true, false},
		{false, false, false},
	}
	for _, tc := range cases {
		d := TrustDecision{TrustedHost: tc.trusted, Authenticated: tc.authed}
		if d.Allows() != tc.want {
			t.Errorf("Allows() with trusted=%v authenticated=%v = %v, want %v", tc.trusted, tc.authed, d.Allows(), tc.want)
		}
	}
}

func TestTrustGateRejectionCleanup(t *testing.T) {
	gate := newTestGate(nil, "s3cret")
	d := gate.Evaluate("rogue.proxy.net", "wrong")
	gate.NoteRejectedFallback("rogue.proxy.net", "tenant.example", d)

	gate.mu.Lock()
	if len(gate.rejections) != 1 {
		t.Fatalf("expected 1 tracked rejection, got %d", len(gate.rejections))
	}
	gate.mu.Unlock()

	// Entries inside the window survive cleanup.
	gate.Cleanup()
	gate.mu.Lock()
	defer gate.mu.Unlock()
	if len(gate.rejections) != 1 {
		t.Fatalf("expected fresh rejection to survive cleanup, got %d entries", len(gate.rejections))
	}
}
