// Package availability tracks whether the remote cart API is usable for the
// current session. The state is owned by whoever constructs it and injected
// into the façade, never a hidden package-level variable, so independent
// façade instances can be tested side by side.
package availability

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State is the session-wide remote availability flag. It starts available
// and transitions one way to unavailable on the first observed failure;
// nothing inside an operation ever transitions it back.
type State struct {
	available atomic.Bool
	lg        *zap.Logger
}

// NewState returns a State that reports the remote API as available.
func NewState(lg *zap.Logger) *State {
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &State{lg: lg}
	s.available.Store(true)
	return s
}

// Available reports whether operations should attempt the remote API.
func (s *State) Available() bool {
	return s.available.Load()
}

// MarkUnavailable flips the flag off for the remainder of the session.
// The first flip is logged; later calls are no-ops.
func (s *State) MarkUnavailable(reason string) {
	if s.available.CompareAndSwap(true, false) {
		s.lg.Warn("cart api unavailable, switching to local store",
			zap.String("reason", reason),
		)
	}
}

// markAvailable is only reachable through an explicit Monitor probe. The
// façade never calls it: within operations the transition is strictly one-way.
func (s *State) markAvailable() {
	if s.available.CompareAndSwap(false, true) {
		s.lg.Info("cart api available again")
	}
}

// Prober issues the lightweight availability request. *remote.Client
// satisfies it with its Count method.
type Prober interface {
	Count(ctx context.Context, userID string) (int, error)
}

// Config controls probing behavior.
type Config struct {
	// ProbeUserID is the identifier probed. Defaults to "guest".
	ProbeUserID string
	// ProbeTimeout bounds a single probe. Defaults to 3s.
	ProbeTimeout time.Duration
	// ReprobeInterval, when positive, re-checks a failed endpoint in the
	// background and restores availability on success. Zero (the default)
	// keeps the original one-shot semantics: once unavailable, the session
	// stays on the local store.
	ReprobeInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.ProbeUserID == "" {
		c.ProbeUserID = "guest"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
}

// Monitor performs the startup probe and, optionally, periodic re-probes.
type Monitor struct {
	state  *State
	prober Prober
	cfg    Config
	lg     *zap.Logger

	sf singleflight.Group
}

// NewMonitor builds a Monitor updating the given State.
func NewMonitor(state *State, prober Prober, cfg Config, lg *zap.Logger) *Monitor {
	if lg == nil {
		lg = zap.NewNop()
	}
	cfg.setDefaults()
	return &Monitor{state: state, prober: prober, cfg: cfg, lg: lg}
}

// Probe issues one availability check and updates the State with the result.
// Concurrent probes are coalesced into a single request. It returns the
// resulting availability.
func (m *Monitor) Probe(ctx context.Context) bool {
	v, _, _ := m.sf.Do("probe", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()

		if _, err := m.prober.Count(probeCtx, m.cfg.ProbeUserID); err != nil {
			m.state.MarkUnavailable("probe failed: " + err.Error())
			return false, nil
		}
		m.state.markAvailable()
		return true, nil
	})
	return v.(bool)
}

// Run blocks, re-probing at the configured interval until ctx is cancelled.
// It returns immediately when re-probing is disabled. Enabling it deviates
// from the original one-way fallback and restores remote use after recovery.
func (m *Monitor) Run(ctx context.Context) {
	if m.cfg.ReprobeInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.cfg.ReprobeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.state.Available() {
				m.Probe(ctx)
			}
		}
	}
}
