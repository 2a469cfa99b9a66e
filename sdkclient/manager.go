// Package sdkclient owns the single SDK client shared by every batch of a
// pipeline instance.
//
// The client is built lazily on first use from the platform settings and
// dropped whenever those settings change. Builds are serialized: concurrent
// callers either observe the current client or wait for the build in flight.
// Batches lease the client; a dropped client is closed once its last lease
// is released, so at most one client stays live outside of in-flight batches.
package sdkclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/metrics"
	"go.uber.org/atomic"
)

// Manager lazily builds and caches the shared TDFClient.
type Manager struct {
	mu       sync.RWMutex
	settings interfaces.PlatformSettings
	current  *lease
	// retired holds invalidated clients still leased by in-flight batches.
	retired []*lease

	builder    interfaces.ClientBuilder
	trust      interfaces.TrustMaterialProvider
	generation atomic.Uint64
	log        *slog.Logger
}

// lease tracks the batches using one client.
type lease struct {
	client  interfaces.TDFClient
	holders atomic.Int64
	closed  bool
}

// NewManager creates a Manager. trust may be nil when no trust store is used.
func NewManager(log *slog.Logger, settings interfaces.PlatformSettings, builder interfaces.ClientBuilder, trust interfaces.TrustMaterialProvider) *Manager {
	return &Manager{
		settings: settings,
		builder:  builder,
		trust:    trust,
		log:      log,
	}
}

// Acquire returns the shared client, building it if there is none, together
// with a release func the caller must call once done with the client.
// An invalidated client is closed when its last holder releases it.
// Build failures are returned as *interfaces.ClientBuildError.
func (m *Manager) Acquire(ctx context.Context) (interfaces.TDFClient, func(), error) {
	m.mu.RLock()
	if l := m.current; l != nil {
		l.holders.Inc()
		m.mu.RUnlock()
		return l.client, m.releaseFunc(l), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.current; l != nil {
		l.holders.Inc()
		return l.client, m.releaseFunc(l), nil
	}

	client, err := m.build(ctx)
	metrics.ObserveClientBuild(err)
	if err != nil {
		m.log.Error("could not build SDK client", "endpoint", m.settings.Endpoint, "err", err)
		return nil, nil, &interfaces.ClientBuildError{Err: err}
	}

	l := &lease{client: client}
	l.holders.Inc()
	m.current = l
	m.generation.Inc()
	return client, m.releaseFunc(l), nil
}

func (m *Manager) releaseFunc(l *lease) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if l.holders.Dec() == 0 && l != m.current {
				m.closeRetiredLocked(l)
			}
		})
	}
}

// closeRetiredLocked closes an invalidated client and forgets it.
func (m *Manager) closeRetiredLocked(l *lease) {
	for i, r := range m.retired {
		if r == l {
			m.retired = append(m.retired[:i], m.retired[i+1:]...)
			break
		}
	}
	if l.closed {
		return
	}
	l.closed = true
	if err := l.client.Close(); err != nil {
		m.log.Error("could not close retired SDK client", "err", err)
	}
}

func (m *Manager) build(ctx context.Context) (interfaces.TDFClient, error) {
	if m.builder == nil {
		return nil, errors.New("no client builder configured")
	}

	cfg := interfaces.ClientConfig{
		PlatformEndpoint: m.settings.Endpoint,
		ClientID:         m.settings.ClientID,
		ClientSecret:     m.settings.ClientSecret,
		UsePlaintext:     m.settings.UsePlaintext,
	}

	if m.settings.TrustStoreRef != "" {
		if m.trust == nil {
			return nil, fmt.Errorf("trust store %q configured without a trust material provider", m.settings.TrustStoreRef)
		}
		tlsConfig, err := m.trust.TLSConfig(ctx, m.settings.TrustStoreRef)
		if err != nil {
			return nil, fmt.Errorf("could not load trust store: %w", err)
		}
		cfg.TLSConfig = tlsConfig
	}

	m.log.Info("SDK - create", "endpoint", cfg.PlatformEndpoint, "plaintext", cfg.UsePlaintext, "trustStore", cfg.TLSConfig != nil)
	client, err := m.builder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("client builder returned no client")
	}
	return client, nil
}

// Invalidate drops the current client; the next Acquire builds a new one.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked()
}

func (m *Manager) invalidateLocked() {
	l := m.current
	if l == nil {
		return
	}
	m.current = nil
	m.log.Info("SDK client invalidated", "generation", m.generation.Load(), "holders", l.holders.Load())

	if l.holders.Load() == 0 {
		m.closeRetiredLocked(l)
		return
	}
	m.retired = append(m.retired, l)
}

// Reconfigure replaces the platform settings, invalidating the client when they
// differ from the current ones. It reports whether the settings changed.
func (m *Manager) Reconfigure(settings interfaces.PlatformSettings) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings.Equal(settings) {
		return false
	}
	m.settings = settings
	m.invalidateLocked()
	return true
}

// Settings returns the current platform settings.
func (m *Manager) Settings() interfaces.PlatformSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Generation returns the number of clients built so far.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Close closes the current client and every retired one, leased or not.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leases := m.retired
	if m.current != nil {
		leases = append([]*lease{m.current}, leases...)
	}
	m.current = nil
	m.retired = nil

	var errs []error
	for _, l := range leases {
		if l.closed {
			continue
		}
		l.closed = true
		errs = append(errs, l.client.Close())
	}
	return errors.Join(errs...)
}

// Retired returns the number of invalidated clients still held by batches.
func (m *Manager) Retired() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.retired)
}
