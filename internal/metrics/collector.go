// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for the relay. It outputs text/plain in Prometheus exposition
// format without requiring the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates counters and gauges.
type Collector struct {
	mu       sync.Mutex
	counters map[string]*Counter
	gauges   map[string]*Gauge

	startTime time.Time
}

func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]*Counter),
		gauges:    make(map[string]*Gauge),
		startTime: time.Now(),
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name string
	help string
	v    atomic.Int64
}

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name string
	help string
	v    atomic.Int64
}

func (g *Gauge) Inc()         { g.v.Add(1) }
func (g *Gauge) Dec()         { g.v.Add(-1) }
func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// Counter registers (or returns the existing) counter with the given name.
func (c *Collector) Counter(name, help string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.counters[name]; ok {
		return existing
	}
	ctr := &Counter{name: name, help: help}
	c.counters[name] = ctr
	return ctr
}

// Gauge registers (or returns the existing) gauge with the given name.
func (c *Collector) Gauge(name, help string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.gauges[name]; ok {
		return existing
	}
	g := &Gauge{name: name, help: help}
	c.gauges[name] = g
	return g
}

// Handler serves the exposition format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	})
}

// Render produces the Prometheus text exposition of all metrics, sorted by
// name for stable output.
func (c *Collector) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := ""
	names := make([]string, 0, len(c.counters))
	for name := range c.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctr := c.counters[name]
		out += fmt.Sprintf("# HELP %s %s\n# TYPE %s counter\n%s %d\n",
			name, ctr.help, name, name, ctr.Value())
	}

	names = names[:0]
	for name := range c.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := c.gauges[name]
		out += fmt.Sprintf("# HELP %s %s\n# TYPE %s gauge\n%s %d\n",
			name, g.help, name, name, g.Value())
	}

	out += fmt.Sprintf("# HELP tgfeed_uptime_seconds Process uptime.\n# TYPE tgfeed_uptime_seconds gauge\ntgfeed_uptime_seconds %d\n",
		int64(time.Since(c.startTime).Seconds()))
	return out
}
