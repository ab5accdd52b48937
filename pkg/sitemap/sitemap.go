// Package sitemap generates per-tenant XML sitemaps and serves them through
// a TTL cache keyed by (site, base URL).
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"time"
)

// TagLimit is how many tag archives a sitemap lists.
const TagLimit = 10

// ContentItem is the minimal view of a published content item the sitemap
// needs. Owned by the content layer; read-only here.
type ContentItem struct {
	Slug         string
	CanonicalURL string
	UpdatedAt    time.Time
}

// ContentLister is the content-listing collaborator the sitemap consumes.
type ContentLister interface {
	// ListPublished returns the published content items of a site.
	ListPublished(ctx context.Context, siteID string) ([]ContentItem, error)
	// TopTags returns the site's n most used tags.
	TopTags(ctx context.Context, siteID string, n int) ([]string, error)
}

const xmlnsSitemap = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// generate builds the sitemap XML for a site as reachable at baseURL:
// the homepage, every published item, and the top tag archives.
func generate(ctx context.Context, siteID, baseURL string, lister ContentLister, now time.Time) ([]byte, error) {
	items, err := lister.ListPublished(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("list published content: %w", err)
	}
	tags, err := lister.TopTags(ctx, siteID, TagLimit)
	if err != nil {
		return nil, fmt.Errorf("list top tags: %w", err)
	}

	newest := time.Time{}
	for _, item := range items {
		if item.UpdatedAt.After(newest) {
			newest = item.UpdatedAt
		}
	}
	if newest.IsZero() {
		newest = now
	}

	set := urlSet{Xmlns: xmlnsSitemap}
	set.URLs = append(set.URLs, urlEntry{
		Loc:     baseURL + "/",
		LastMod: newest.UTC().Format(time.RFC3339),
	})

	for _, item := range items {
		loc := item.CanonicalURL
		if loc == "" {
			loc = baseURL + "/post/" + url.PathEscape(item.Slug)
		}
		entry := urlEntry{Loc: loc}
		if !item.UpdatedAt.IsZero() {
			entry.LastMod = item.UpdatedAt.UTC().Format(time.RFC3339)
		}
		set.URLs = append(set.URLs, entry)
	}

	for _, tag := range tags {
		set.URLs = append(set.URLs, urlEntry{
			Loc: baseURL + "/tag/" + url.PathEscape(tag),
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
