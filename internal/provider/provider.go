// Package provider models the two external payment processors the
// dispatcher talks to, and caches the health/fee snapshot collected at
// startup. The caching/RWMutex shape is adapted from the teacher's
// internal/resolver.CachingKeyResolver (there used to cache ed25519
// public keys by kid with a TTL); here it caches a Provider's health
// snapshot instead, read by every worker and written only by the
// startup probe or a future background refresher (spec §4.2/§9).
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Name identifies one of the two interchangeable-contract providers.
type Name string

const (
	Default  Name = "default"
	Fallback Name = "fallback"
)

// Info is the snapshot returned by a provider's admin endpoints. The
// dispatcher caches it but — per spec §4.2 — never consults it when
// deciding where to route a payment; it is present for a future
// health-aware routing strategy.
type Info struct {
	FeePerTransaction float64
	Failing           bool
	MinResponseTime   time.Duration
}

// Registry holds the cached Info for both providers behind a
// readers/writer lock: workers only ever read; writes are reserved for
// the startup probe and any future background refresher.
type Registry struct {
	mu   sync.RWMutex
	info map[Name]Info
}

func NewRegistry() *Registry {
	return &Registry{info: make(map[Name]Info, 2)}
}

func (r *Registry) Get(name Name) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.info[name]
	return info, ok
}

func (r *Registry) Set(name Name, info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info[name] = info
}

type summaryResponse struct {
	TotalRequests     float64 `json:"totalRequests"`
	TotalAmount       float64 `json:"totalAmount"`
	TotalFee          float64 `json:"totalFee"`
	FeePerTransaction float64 `json:"feePerTransaction"`
}

type healthResponse struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"minResponseTime"`
}

// ProbeAll issues the four concurrent admin GETs spec §4.2 requires —
// /admin/payments-summary and /payments/service-health against both
// providers — and returns a populated Registry. If any of the four
// calls fails, it returns an error and the dispatcher must abort
// startup.
func ProbeAll(ctx context.Context, client *http.Client, defaultURL, fallbackURL string) (*Registry, error) {
	type probeResult struct {
		name Name
		info Info
		err  error
	}

	targets := []struct {
		name    Name
		baseURL string
	}{
		{Default, defaultURL},
		{Fallback, fallbackURL},
	}

	results := make(chan probeResult, len(targets))
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(name Name, baseURL string) {
			defer wg.Done()
			info, err := probeOne(ctx, client, baseURL)
			results <- probeResult{name: name, info: info, err: err}
		}(t.name, t.baseURL)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	reg := NewRegistry()
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		reg.Set(r.name, r.info)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return reg, nil
}

// probeOne issues the summary and health GETs for a single provider
// concurrently (two of the spec's four total startup calls).
func probeOne(ctx context.Context, client *http.Client, baseURL string) (Info, error) {
	type partial struct {
		summary summaryResponse
		health  healthResponse
		err     error
	}

	sumCh := make(chan partial, 1)
	healthCh := make(chan partial, 1)

	go func() {
		var s summaryResponse
		err := getJSON(ctx, client, baseURL+"/admin/payments-summary", &s)
		sumCh <- partial{summary: s, err: err}
	}()
	go func() {
		var h healthResponse
		err := getJSON(ctx, client, baseURL+"/payments/service-health", &h)
		healthCh <- partial{health: h, err: err}
	}()

	sum := <-sumCh
	if sum.err != nil {
		return Info{}, fmt.Errorf("provider: summary probe for %s: %w", baseURL, sum.err)
	}
	health := <-healthCh
	if health.err != nil {
		return Info{}, fmt.Errorf("provider: health probe for %s: %w", baseURL, health.err)
	}

	return Info{
		FeePerTransaction: sum.summary.FeePerTransaction,
		Failing:           health.health.Failing,
		MinResponseTime:   time.Duration(health.health.MinResponseTime) * time.Millisecond,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Rinha-Token", "123")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
