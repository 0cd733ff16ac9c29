// ABOUTME: mDNS browsing for dubbing backends
// ABOUTME: Queries the local network until a backend answers or the context ends
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// DefaultQueryTimeout bounds a single mDNS query round
const DefaultQueryTimeout = 3 * time.Second

// Backend describes a discovered dubbing backend
type Backend struct {
	Name string
	Host string
	Port int
	// Scheme comes from the "scheme=" TXT record, defaulting to http
	Scheme string
}

// BaseURL returns the HTTP base URL of the backend
func (b Backend) BaseURL() string {
	scheme := b.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// queryFunc runs one mDNS query; replaced in tests
type queryFunc func(*mdns.QueryParam) error

// Browser finds backends by repeated mDNS queries
type Browser struct {
	timeout time.Duration
	query   queryFunc
}

// NewBrowser creates a browser whose query rounds last timeout
func NewBrowser(timeout time.Duration) *Browser {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Browser{timeout: timeout, query: mdns.Query}
}

// Discover runs query rounds until the first usable answer or ctx is done
func (b *Browser) Discover(ctx context.Context) (Backend, error) {
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return Backend{}, fmt.Errorf("no dubbing backend found: %w", err)
		}

		backend, ok, err := b.round(ctx)
		if err != nil {
			log.Printf("mDNS query round %d failed: %v", round, err)
		}
		if ok {
			log.Printf("Discovered backend %s at %s", backend.Name, backend.BaseURL())
			return backend, nil
		}
	}
}

// round performs one query and returns the first usable entry
func (b *Browser) round(ctx context.Context) (Backend, bool, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan Backend, 1)

	go func() {
		defer close(found)
		for entry := range entries {
			if backend, ok := fromEntry(entry); ok {
				found <- backend
				// Drain the rest so the query never blocks
				for range entries {
				}
				return
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Domain = "local"
	params.Timeout = b.timeout
	params.Entries = entries
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() {
		errc <- b.query(params)
		close(entries)
	}()

	select {
	case backend, ok := <-found:
		if ok {
			return backend, true, nil
		}
		return Backend{}, false, <-errc
	case <-ctx.Done():
		return Backend{}, false, ctx.Err()
	}
}

// fromEntry converts an mDNS answer into a Backend
func fromEntry(entry *mdns.ServiceEntry) (Backend, bool) {
	if entry == nil || entry.AddrV4 == nil || entry.Port == 0 {
		return Backend{}, false
	}

	backend := Backend{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "scheme="); ok {
			backend.Scheme = v
		}
	}
	return backend, true
}
