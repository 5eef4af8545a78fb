package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/metrics"
	"github.com/raulk/clock"
)

// DefaultInterval applies when a connector configures none.
const DefaultInterval = 15 * time.Minute

// FetchFunc lists every current record for one poller, in vendor order.
type FetchFunc func(ctx context.Context) ([]instance.Instance, error)

// Poller runs Fetch immediately on Start and then every Interval, pushing each
// instance to Subscriber as an upsert. Passes never overlap: a tick that arrives
// while a pass is still running is dropped.
type Poller struct {
	Connector  string
	Name       string
	Interval   time.Duration
	Fetch      FetchFunc
	Subscriber instance.Subscriber

	// Seen, when set, suppresses instances already emitted by this process.
	Seen   *SeenSet
	Clock  clock.Clock
	Logger *slog.Logger
}

// RunOnce performs a single fetch-and-emit pass. Subscriber errors are
// collected and returned together; emission continues past them.
func (p *Poller) RunOnce(ctx context.Context) error {
	clk := p.clock()
	logger := p.logger()
	start := clk.Now()
	logger.Debug("poll started")

	emitted, err := p.runOnce(ctx)

	elapsed := clk.Since(start)
	metrics.PollDuration.WithLabelValues(p.Connector, p.Name).Observe(elapsed.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PollRunsTotal.WithLabelValues(p.Connector, p.Name, status).Inc()
	if err != nil {
		logger.Error("poll failed", "emitted", emitted, "duration", elapsed, "err", err)
		return err
	}
	metrics.PollLastSuccessTimestamp.WithLabelValues(p.Connector, p.Name).Set(float64(clk.Now().Unix()))
	logger.Debug("poll finished", "emitted", emitted, "duration", elapsed)
	return nil
}

func (p *Poller) runOnce(ctx context.Context) (int, error) {
	if p.Fetch == nil {
		return 0, errors.New("poller has no fetch function")
	}
	if p.Subscriber == nil {
		return 0, errors.New("poller has no subscriber")
	}
	items, err := p.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", p.Name, err)
	}

	var errs []error
	emitted := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if p.Seen != nil && p.Seen.Has(item) {
			metrics.PollRecordsSkippedTotal.WithLabelValues(p.Connector, p.Name).Inc()
			continue
		}
		if err := p.Subscriber.OnSubscription(ctx, item, true); err != nil {
			errs = append(errs, fmt.Errorf("emit %s %s: %w", item.EntityType, item.ID(), err))
			continue
		}
		// Only delivered records are remembered, so a rejected one is retried next pass.
		if p.Seen != nil {
			p.Seen.Add(item)
		}
		emitted++
		metrics.PollRecordsEmittedTotal.WithLabelValues(p.Connector, p.Name).Inc()
	}
	return emitted, errors.Join(errs...)
}

// Start runs an immediate pass and then one per Interval until ctx is
// cancelled or the returned handle is stopped.
func (p *Poller) Start(ctx context.Context) *Handle {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	ticker := p.clock().Ticker(interval)
	p.logger().Info("poller started", "interval", interval)
	go func() {
		defer close(h.done)
		defer ticker.Stop()

		_ = p.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				p.logger().Info("poller stopped")
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					continue
				}
				_ = p.RunOnce(ctx)
			}
		}
	}()
	return h
}

func (p *Poller) clock() clock.Clock {
	if p.Clock == nil {
		return clock.New()
	}
	return p.Clock
}

func (p *Poller) logger() *slog.Logger {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("connector", p.Connector, "poller", p.Name)
}

// Handle controls a started poller.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the poller and waits for an in-flight pass to finish.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the poller goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Group starts several pollers and stops them together.
type Group struct {
	handles []*Handle
}

func StartAll(ctx context.Context, pollers ...*Poller) *Group {
	g := &Group{}
	for _, p := range pollers {
		g.handles = append(g.handles, p.Start(ctx))
	}
	return g
}

func (g *Group) Stop() {
	for _, h := range g.handles {
		h.Stop()
	}
}

// Wait blocks until every poller has exited.
func (g *Group) Wait() {
	for _, h := range g.handles {
		<-h.Done()
	}
}
