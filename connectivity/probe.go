package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// DefaultProbeInterval is used when NewProbe is given a non-positive interval.
const DefaultProbeInterval = 10 * time.Second

// CheckFunc reports whether the remote side is reachable. A nil error means
// online.
type CheckFunc func(ctx context.Context) error

// Probe is a Source that polls a CheckFunc and emits an event whenever the
// result flips. The first check result is always emitted.
type Probe struct {
	check    CheckFunc
	interval time.Duration
	timeout  time.Duration
	logger   *logging.Logger

	ch   chan bool
	stop chan struct{}
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	run  bool
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithProbeTimeout bounds a single check. Defaults to the interval.
func WithProbeTimeout(d time.Duration) ProbeOption {
	return func(p *Probe) { p.timeout = d }
}

// WithProbeLogger sets the logger for check failures.
func WithProbeLogger(l *logging.Logger) ProbeOption {
	return func(p *Probe) { p.logger = l }
}

// NewProbe creates a probe. Nothing is checked until Run.
func NewProbe(check CheckFunc, interval time.Duration, opts ...ProbeOption) *Probe {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	p := &Probe{
		check:    check,
		interval: interval,
		timeout:  interval,
		logger:   logging.Default(),
		ch:       make(chan bool, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent(logging.Component("connectivity"))
	return p
}

// Events implements Source. The channel is closed when the probe stops.
func (p *Probe) Events() <-chan bool { return p.ch }

// Run starts polling in the background until ctx is done or Close is called.
// Calling Run more than once has no effect.
func (p *Probe) Run(ctx context.Context) {
	p.mu.Lock()
	if p.run {
		p.mu.Unlock()
		return
	}
	p.run = true
	p.mu.Unlock()

	go p.loop(ctx)
}

func (p *Probe) loop(ctx context.Context) {
	defer close(p.done)
	defer close(p.ch)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	first := true
	var last bool
	for {
		online := p.probe(ctx)
		if first || online != last {
			select {
			case p.ch <- online:
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			}
			first, last = false, online
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
		}
	}
}

func (p *Probe) probe(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.check(checkCtx); err != nil {
		p.logger.Debug("connectivity check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Close stops the probe and waits for the polling goroutine.
func (p *Probe) Close() error {
	p.once.Do(func() { close(p.stop) })
	p.mu.Lock()
	started := p.run
	p.mu.Unlock()
	if started {
		<-p.done
	}
	return nil
}

// HTTPCheck returns a CheckFunc that GETs url and treats any 2xx as online.
func HTTPCheck(client *http.Client, url string) CheckFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("health check returned %d", resp.StatusCode)
		}
		return nil
	}
}
