// Package fetch retrieves topology snapshots from the producer.
//
// The HTTP client applies the bounded-retry policy used at startup; the
// background sync loop calls it with a single attempt so a slow producer
// cannot stall the cadence. A file-backed source covers offline replay.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"netmirror/internal/topo"
)

// TopologyPath is the producer's snapshot endpoint, relative to the
// configured base URL.
const TopologyPath = "/api/topology"

// ErrExhausted is returned when every fetch attempt failed. It wraps the
// last underlying cause.
var ErrExhausted = errors.New("topology fetch retries exhausted")

// Options control one Fetch invocation.
type Options struct {
	// MaxRetries is the total number of attempts (minimum 1).
	MaxRetries int
	// RetryDelay is slept between attempts, never after the last.
	RetryDelay time.Duration
	// Silent suppresses per-attempt logging so background polls do not
	// interleave with interactive output.
	Silent bool
}

// Client fetches snapshots over HTTP from a fixed producer base URL.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a fetch client for the given producer base URL,
// e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch retrieves and validates a snapshot. A transport failure, a
// non-200 status, undecodable JSON, or a snapshot failing shape
// validation all count as a failed attempt; no error escapes mid-loop.
// Exhausting all attempts returns an error wrapping ErrExhausted.
func (c *Client) Fetch(ctx context.Context, opts Options) (*topo.Snapshot, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	if !opts.Silent {
		log.Printf("Fetching topology from %s", c.baseURL)
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		snap, err := c.fetchOnce(ctx)
		if err == nil {
			if !opts.Silent {
				log.Printf("Topology fetched (version %d): %d switches, %d links, %d hosts",
					snap.Version, len(snap.Switches), len(snap.Links), len(snap.Hosts))
			}
			return snap, nil
		}

		lastErr = err
		if !opts.Silent {
			log.Printf("Fetch attempt %d/%d failed: %v", attempt, opts.MaxRetries, err)
		}

		if attempt == opts.MaxRetries {
			break
		}
		select {
		case <-time.After(opts.RetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrExhausted, ctx.Err())
		}
	}

	if !opts.Silent {
		log.Printf("Failed to fetch topology after %d attempts", opts.MaxRetries)
	}
	return nil, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (*topo.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+TopologyPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("producer returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}

	snap, err := topo.Decode(body)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
