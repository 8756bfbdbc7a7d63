package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Opts names a metric for the exposition page.
type Opts struct {
	Name string
	Help string
}

// collector renders itself in Prometheus text format. Registration order is
// exposition order.
type collector interface {
	describe() Opts
	kind() string
	collect(w io.Writer)
}

type Registry struct {
	mu      sync.Mutex
	ordered []collector
	seen    map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{seen: map[string]struct{}{}}
}

func (r *Registry) MustRegister(items ...collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		name := item.describe().Name
		if _, dup := r.seen[name]; dup {
			panic("metrics collector already registered: " + name)
		}
		r.seen[name] = struct{}{}
		r.ordered = append(r.ordered, item)
	}
}

func (r *Registry) render(w io.Writer) {
	r.mu.Lock()
	snapshot := make([]collector, len(r.ordered))
	copy(snapshot, r.ordered)
	r.mu.Unlock()

	for _, c := range snapshot {
		opts := c.describe()
		fmt.Fprintf(w, "# HELP %s %s\n", opts.Name, opts.Help)
		fmt.Fprintf(w, "# TYPE %s %s\n", opts.Name, c.kind())
		c.collect(w)
	}
}

func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.render(w)
	})
}

var (
	Default      = NewRegistry()
	processStart = time.Now()
)

func DefaultHandler() http.Handler {
	return Default.Handler()
}

// Gauge is a single float series. Updates go through atomic bit casts so hot
// paths never take a lock.
type Gauge struct {
	opts Opts
	bits atomic.Uint64
}

func NewGauge(opts Opts) *Gauge {
	return &Gauge{opts: opts}
}

func (g *Gauge) describe() Opts { return g.opts }
func (g *Gauge) kind() string   { return "gauge" }

func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

func (g *Gauge) Add(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) collect(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", g.opts.Name, formatValue(math.Float64frombits(g.bits.Load())))
}

// GaugeFunc samples its value at scrape time.
type GaugeFunc struct {
	opts Opts
	fn   func() float64
}

func NewGaugeFunc(opts Opts, fn func() float64) *GaugeFunc {
	return &GaugeFunc{opts: opts, fn: fn}
}

func (g *GaugeFunc) describe() Opts { return g.opts }
func (g *GaugeFunc) kind() string   { return "gauge" }

func (g *GaugeFunc) collect(w io.Writer) {
	var v float64
	if g.fn != nil {
		v = g.fn()
	}
	fmt.Fprintf(w, "%s %s\n", g.opts.Name, formatValue(v))
}

// CounterVec is a labelled counter family. Series are created on first use
// and live for the process lifetime.
type CounterVec struct {
	opts       Opts
	labelNames []string

	mu     sync.Mutex
	series map[string]*Counter
}

func NewCounterVec(opts Opts, labelNames []string) *CounterVec {
	return &CounterVec{
		opts:       opts,
		labelNames: append([]string(nil), labelNames...),
		series:     map[string]*Counter{},
	}
}

func (c *CounterVec) describe() Opts { return c.opts }
func (c *CounterVec) kind() string   { return "counter" }

// WithLabelValues returns the series for the given label values, creating it
// if needed. Cardinality mismatches yield an inert counter.
func (c *CounterVec) WithLabelValues(values ...string) *Counter {
	if len(values) != len(c.labelNames) {
		return nil
	}
	key := strings.Join(values, "\x1f")

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.series[key]; ok {
		return existing
	}
	created := &Counter{labels: formatLabels(c.labelNames, values)}
	c.series[key] = created
	return created
}

func (c *CounterVec) collect(w io.Writer) {
	c.mu.Lock()
	lines := make([]string, 0, len(c.series))
	for _, ctr := range c.series {
		lines = append(lines, c.opts.Name+ctr.labels+" "+formatValue(ctr.value()))
	}
	c.mu.Unlock()

	sort.Strings(lines)
	for _, line := range lines {
		io.WriteString(w, line)
		io.WriteString(w, "\n")
	}
}

// Counter is one series of a CounterVec. Nil counters absorb updates.
type Counter struct {
	labels string
	bits   atomic.Uint64
}

func (c *Counter) Add(delta float64) {
	if c == nil || delta < 0 {
		return
	}
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if c.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) value() float64 {
	return math.Float64frombits(c.bits.Load())
}

func formatLabels(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(escapeLabelValue(values[i]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeLabelValue(v string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	return replacer.Replace(v)
}

func init() {
	Default.MustRegister(
		NewGaugeFunc(Opts{
			Name: "process_uptime_seconds",
			Help: "Seconds since process start.",
		}, func() float64 {
			return time.Since(processStart).Seconds()
		}),
		NewGaugeFunc(Opts{
			Name: "go_goroutines",
			Help: "Number of goroutines.",
		}, func() float64 {
			return float64(runtime.NumGoroutine())
		}),
		NewGaugeFunc(Opts{
			Name: "go_memstats_alloc_bytes",
			Help: "Allocated heap bytes.",
		}, func() float64 {
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			return float64(mem.Alloc)
		}),
	)
}
