package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryDirectoryByDomain(t *testing.T) {
	d := NewMemoryDirectory()
	d.Add(&Site{
		ID:            "site-1",
		PrimaryDomain: "Tenant.Example",
		DomainAliases: []string{"alias.example"},
		BasePath:      "/blog",
	})

	for _, host := range []string{"tenant.example", "TENANT.EXAMPLE", "alias.example"} {
		site, err := d.ByDomain(context.Background(), host)
		if err != nil {
			t.Fatalf("ByDomain(%q): %v", host, err)
		}
		if site.ID != "site-1" {
			t.Errorf("ByDomain(%q) = %q, want site-1", host, site.ID)
		}
	}

	if _, err := d.ByDomain(context.Background(), "unknown.example"); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestMemoryDirectoryAssignsID(t *testing.T) {
	d := NewMemoryDirectory()
	stored := d.Add(&Site{PrimaryDomain: "tenant.example"})
	if stored.ID == "" {
		t.Error("expected a generated site ID")
	}
}

func TestMemoryDirectoryStoresCopy(t *testing.T) {
	d := NewMemoryDirectory()
	original := &Site{ID: "site-1", PrimaryDomain: "tenant.example", BasePath: "/blog"}
	d.Add(original)

	original.BasePath = "/changed"

	site, err := d.ByDomain(context.Background(), "tenant.example")
	if err != nil {
		t.Fatal(err)
	}
	if site.BasePath != "/blog" {
		t.Errorf("directory record mutated through the caller's pointer: %q", site.BasePath)
	}
}

func TestMemoryDirectoryByVisitorHostname(t *testing.T) {
	d := NewMemoryDirectory()
	d.Add(&Site{
		ID:                   "site-proxy",
		PrimaryDomain:        "origin.example",
		DeploymentMode:       ModeReverseProxy,
		ProxyVisitorHostname: "proxied.example",
	})
	d.Add(&Site{
		ID:                   "site-standalone",
		PrimaryDomain:        "plain.example",
		DeploymentMode:       ModeStandalone,
		ProxyVisitorHostname: "misconfigured.example",
	})

	site, err := d.ByVisitorHostname(context.Background(), "Proxied.Example")
	if err != nil {
		t.Fatal(err)
	}
	if site.ID != "site-proxy" {
		t.Errorf("got %q, want site-proxy", site.ID)
	}

	// The proxied index only answers for reverse_proxy deployments.
	if _, err := d.ByVisitorHostname(context.Background(), "misconfigured.example"); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("standalone site must not resolve by visitor hostname, got %v", err)
	}
	if _, err := d.ByVisitorHostname(context.Background(), "unknown.example"); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestMemoryDirectoryRemove(t *testing.T) {
	d := NewMemoryDirectory()
	d.Add(&Site{
		ID:                   "site-1",
		PrimaryDomain:        "tenant.example",
		DomainAliases:        []string{"alias.example"},
		DeploymentMode:       ModeReverseProxy,
		ProxyVisitorHostname: "proxied.example",
	})

	d.Remove("site-1")

	for _, host := range []string{"tenant.example", "alias.example"} {
		if _, err := d.ByDomain(context.Background(), host); !errors.Is(err, ErrSiteNotFound) {
			t.Errorf("ByDomain(%q) after Remove: %v", host, err)
		}
	}
	if _, err := d.ByVisitorHostname(context.Background(), "proxied.example"); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("ByVisitorHostname after Remove: %v", err)
	}

	// Removing an unknown site is a no-op.
	d.Remove("site-1")
}
