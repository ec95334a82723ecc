package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/metrics"
)

// DefaultResources is the app shell required for offline navigation.
var DefaultResources = []string{
	"/",
	"/dashboard",
	"/crop-health",
	"/voice",
	"/weather",
	"/prices",
	"/crop-calendar",
	"/offline.html",
	"/manifest.json",
	"/favicon.png",
}

// DefaultOfflinePath is the fallback page served to navigations while offline.
const DefaultOfflinePath = "/offline.html"

const maxCachedBodySize = 8 << 20 // 8 MiB per asset

// Config describes the origin and the resource manifest.
type Config struct {
	// Origin is the base URL of the static origin being fronted.
	Origin string
	// Generation names the cache version to install (e.g. "kisan-sathi-v1").
	Generation string
	// Resources is the ordered manifest pre-populated on install.
	Resources []string
	// OfflinePath is the navigation fallback page, cached during install.
	OfflinePath string
	// Client overrides the HTTP client used for origin fetches.
	Client *http.Client
}

// Manager owns the asset cache lifecycle and request interception.
type Manager struct {
	storage     *Storage
	origin      *url.URL
	generation  string
	resources   []string
	offlinePath string
	client      *http.Client
	proxy       *httputil.ReverseProxy
	log         *zap.Logger
}

// NewManager constructs a Manager over the shared storage.
func NewManager(cfg Config, storage *Storage) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("assetcache: storage is required")
	}
	if strings.TrimSpace(cfg.Generation) == "" {
		return nil, errors.New("assetcache: generation name is required")
	}

	origin, err := url.Parse(strings.TrimSpace(cfg.Origin))
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("assetcache: invalid origin %q", cfg.Origin)
	}

	resources := cfg.Resources
	if len(resources) == 0 {
		resources = DefaultResources
	}

	offlinePath := cfg.OfflinePath
	if offlinePath == "" {
		offlinePath = DefaultOfflinePath
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.WriteHeader(http.StatusBadGateway)
	}

	return &Manager{
		storage:     storage,
		origin:      origin,
		generation:  cfg.Generation,
		resources:   resources,
		offlinePath: offlinePath,
		client:      client,
		proxy:       proxy,
		log:         logger.WithModule("assetcache"),
	}, nil
}

// Storage exposes the shared cache storage.
func (m *Manager) Storage() *Storage { return m.storage }

// Generation returns the configured generation name.
func (m *Manager) Generation() string { return m.generation }

// Install fetches every manifest resource from the origin into the configured
// generation. The install is all-or-nothing: a single failed fetch aborts and
// leaves no partial generation behind.
func (m *Manager) Install(ctx context.Context) error {
	entries := make(map[string]*StoredResponse, len(m.resources))

	for _, path := range m.resources {
		resp, err := m.fetchOrigin(ctx, path)
		if err != nil {
			return fmt.Errorf("assetcache: install %s: %w", path, err)
		}
		if resp.Status != http.StatusOK {
			return fmt.Errorf("assetcache: install %s: origin returned %d", path, resp.Status)
		}
		entries[path] = resp
	}

	m.storage.CreateGeneration(m.generation, entries)
	m.log.Info("generation installed",
		zap.String("generation", m.generation),
		zap.Int("resources", len(entries)),
	)
	return nil
}

// Activate makes the configured generation current and deletes all others.
func (m *Manager) Activate(_ context.Context) error {
	removed := m.storage.ActivateGeneration(m.generation)
	for _, name := range removed {
		m.log.Info("deleted old generation", zap.String("generation", name))
	}
	return nil
}

// fetchOrigin performs one GET against the origin and snapshots the response.
func (m *Manager) fetchOrigin(ctx context.Context, path string) (*StoredResponse, error) {
	target := m.origin.JoinPath(path).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return snapshotResponse(resp)
}

// snapshotResponse reads a live HTTP response into a cacheable form.
func snapshotResponse(resp *http.Response) (*StoredResponse, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedBodySize))
	if err != nil {
		return nil, err
	}

	return &StoredResponse{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// ServeHTTP intercepts requests: GETs are served cache-first with a
// background-free store-on-200 refresh path; everything else passes through
// to the origin untouched.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		metrics.AssetCacheLookups.WithLabelValues("bypass").Inc()
		m.proxy.ServeHTTP(w, r)
		return
	}

	path := r.URL.Path

	if cached, ok := m.storage.Lookup(path); ok {
		metrics.AssetCacheLookups.WithLabelValues("hit").Inc()
		writeStored(w, cached)
		return
	}
	metrics.AssetCacheLookups.WithLabelValues("miss").Inc()

	fetched, err := m.fetchOrigin(r.Context(), path)
	if err != nil {
		m.serveOffline(w, r)
		return
	}

	if fetched.Status == http.StatusOK {
		m.storage.Store(path, fetched)
	}
	writeStored(w, fetched)
}

// serveOffline answers a failed origin fetch: the offline page for
// navigations, a synthetic 503 for anything else.
func (m *Manager) serveOffline(w http.ResponseWriter, r *http.Request) {
	if isNavigation(r) {
		if page, ok := m.storage.Lookup(m.offlinePath); ok {
			metrics.OfflineFallbacks.WithLabelValues("page").Inc()
			writeStored(w, page)
			return
		}
	}

	metrics.OfflineFallbacks.WithLabelValues("synthetic").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("Offline"))
}

// isNavigation reports whether the request is a page navigation.
func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeStored(w http.ResponseWriter, resp *StoredResponse) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}
