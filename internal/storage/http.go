package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/dmitrijs2005/cryptindex/internal/netx"
)

// JoinURL addresses name under base: scheme://host[:port]<path>/<name>[?query].
// The query of base is carried over, so signed locators keep working per blob.
func JoinURL(base *url.URL, name string) string {
	var sb strings.Builder
	sb.WriteString(base.Scheme)
	sb.WriteString("://")
	sb.WriteString(base.Host)
	sb.WriteString(strings.TrimSuffix(base.EscapedPath(), "/"))
	sb.WriteByte('/')
	sb.WriteString(name)
	if base.RawQuery != "" {
		sb.WriteByte('?')
		sb.WriteString(base.RawQuery)
	}
	return sb.String()
}

// HTTPSource reads blobs published under an http(s) base locator.
// Listing is not available over plain HTTP.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource parses locator and returns a source rooted at it. A nil
// client selects http.DefaultClient.
func NewHTTPSource(locator string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parse locator %q: %w", locator, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("locator %q: %w: scheme %q", locator, common.ErrNotSupported, u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: u, client: client}, nil
}

func (h *HTTPSource) Has(ctx context.Context, name string) (bool, error) {
	return netx.Exists(ctx, h.client, JoinURL(h.base, name))
}

func (h *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return netx.Fetch(ctx, h.client, JoinURL(h.base, name))
}

func (h *HTTPSource) List(context.Context) ([]string, error) {
	return nil, fmt.Errorf("list %s: %w", h.base.Redacted(), common.ErrNotSupported)
}
