package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultProbeInterval is how often the Monitor probes by default.
const DefaultProbeInterval = 15 * time.Second

// Probe checks whether the remote endpoint is reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

// Check calls f.
func (f ProbeFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// HTTPProbe GETs a health URL. Any 2xx answer is Online.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe creates a probe for url. A nil client gets a 3 second timeout.
func NewHTTPProbe(url string, client *http.Client) *HTTPProbe {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return &HTTPProbe{url: strings.TrimSpace(url), client: client}
}

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check: %s", resp.Status)
	}
	return nil
}

// Monitor polls a Probe and publishes transitions on a Broadcaster.
//
// Transitions are edge-triggered against the broadcaster's current state,
// so a forced Offline from the submission path is followed by an Online
// as soon as the next probe succeeds.
type Monitor struct {
	probe    Probe
	bc       *Broadcaster
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the monitor's logger.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMonitor creates a monitor publishing on bc.
func NewMonitor(probe Probe, bc *Broadcaster, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		probe:    probe,
		bc:       bc,
		interval: DefaultProbeInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.timeout = m.interval
	return m
}

// Poll probes once and publishes if the state changed. It returns the
// observed state.
func (m *Monitor) Poll(ctx context.Context) State {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	observed := StateOnline
	if err := m.probe.Check(probeCtx); err != nil {
		observed = StateOffline
		m.logger.Debug("connectivity probe failed", "error", err)
	}

	if ctx.Err() != nil {
		return m.bc.State()
	}
	if m.bc.PublishIfChanged(Event{State: observed}) {
		m.logger.Info("connectivity changed", "state", observed.String())
	}
	return observed
}

// Run polls immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}
