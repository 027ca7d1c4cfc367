// Package observability lets the server and CLI watch scans, graph builds,
// cache traffic and queries without the libraries importing a metrics
// backend.
//
// Libraries report events through the registered hooks; main registers
// implementations at startup (Prometheus collectors for `depmap serve`,
// debug logging for the CLI):
//
//	observability.SetScanHooks(metrics)
//	observability.SetCacheHooks(metrics)
//
//	observability.Scan().OnScanStart(ctx, root, repos)
//	// ... walk and parse ...
//	observability.Scan().OnScanComplete(ctx, files, pkgs, failed, time.Since(start), err)
//
// Every hook defaults to a no-op.
package observability

import (
	"context"
	"sync"
	"time"
)

// ScanHooks receives events from aports scans and graph builds.
type ScanHooks interface {
	OnScanStart(ctx context.Context, root string, repositories []string)
	OnFileParsed(ctx context.Context, repository string, packages int, err error)
	OnScanComplete(ctx context.Context, files, packages, failed int, duration time.Duration, err error)
	OnBuildComplete(ctx context.Context, nodes, edges, unresolved int, duration time.Duration, err error)
}

// CacheHooks receives events from cache lookups. keyType is the key prefix
// ("scan", "resp").
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// QueryHooks receives events from graph queries served over HTTP.
type QueryHooks interface {
	OnQuery(ctx context.Context, route string, status int, duration time.Duration)
}

// NoopScanHooks ignores every event.
type NoopScanHooks struct{}

func (NoopScanHooks) OnScanStart(context.Context, string, []string)                        {}
func (NoopScanHooks) OnFileParsed(context.Context, string, int, error)                     {}
func (NoopScanHooks) OnScanComplete(context.Context, int, int, int, time.Duration, error)  {}
func (NoopScanHooks) OnBuildComplete(context.Context, int, int, int, time.Duration, error) {}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopQueryHooks ignores every event.
type NoopQueryHooks struct{}

func (NoopQueryHooks) OnQuery(context.Context, string, int, time.Duration) {}

var (
	hooksMu    sync.RWMutex
	scanHooks  ScanHooks  = NoopScanHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	queryHooks QueryHooks = NoopQueryHooks{}
)

// SetScanHooks registers scan hooks. nil is ignored.
func SetScanHooks(h ScanHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		scanHooks = h
	}
}

// SetCacheHooks registers cache hooks. nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetQueryHooks registers query hooks. nil is ignored.
func SetQueryHooks(h QueryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		queryHooks = h
	}
}

// Scan returns the registered scan hooks.
func Scan() ScanHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return scanHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Query returns the registered query hooks.
func Query() QueryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return queryHooks
}

// Reset restores the no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	scanHooks = NoopScanHooks{}
	cacheHooks = NoopCacheHooks{}
	queryHooks = NoopQueryHooks{}
}
