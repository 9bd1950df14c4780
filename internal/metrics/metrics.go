// Package metrics keeps process-wide counters and a short per-second
// history for the monitor page.
package metrics

import (
	_ "embed"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

//go:embed monitor.html
var monitorHTML []byte

var (
	RequestsTotal    atomic.Uint64
	RequestsOK       atomic.Uint64
	Inbound429       atomic.Uint64
	CacheHits        atomic.Uint64
	CacheMisses      atomic.Uint64
	CacheEvictions   atomic.Uint64
	Fetches          atomic.Uint64
	FetchErrors      atomic.Uint64
	StreamReconnects atomic.Uint64
	StreamFailures   atomic.Uint64
	PatchesApplied   atomic.Uint64
	PatchesDropped   atomic.Uint64
)

const historySize = 120 // 2 min at 1 sample/sec

type sample struct {
	T           int64  `json:"t"`
	Requests    uint64 `json:"req"`
	OK          uint64 `json:"ok"`
	Inbound429  uint64 `json:"inbound_429"`
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`
	Fetches     uint64 `json:"fetches"`
	FetchErrors uint64 `json:"fetch_errors"`
	Patches     uint64 `json:"patches"`
}

// counters tracks the last observed totals so samples hold per-second deltas.
type counters struct {
	total, ok, inbound, hits, misses, fetches, fetchErrs, patches uint64
}

// ring holds the most recent samples, oldest first when read.
type ring struct {
	mu   sync.Mutex
	buf  [historySize]sample
	next int
	last counters
}

var history ring

func init() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for t := range ticker.C {
			history.record(t, current())
		}
	}()
}

func current() counters {
	return counters{
		total:     RequestsTotal.Load(),
		ok:        RequestsOK.Load(),
		inbound:   Inbound429.Load(),
		hits:      CacheHits.Load(),
		misses:    CacheMisses.Load(),
		fetches:   Fetches.Load(),
		fetchErrs: FetchErrors.Load(),
		patches:   PatchesApplied.Load(),
	}
}

// record stores the deltas between c and the previous reading.
func (r *ring) record(at time.Time, c counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.last
	r.buf[r.next] = sample{
		T:           at.Unix(),
		Requests:    c.total - prev.total,
		OK:          c.ok - prev.ok,
		Inbound429:  c.inbound - prev.inbound,
		CacheHits:   c.hits - prev.hits,
		CacheMisses: c.misses - prev.misses,
		Fetches:     c.fetches - prev.fetches,
		FetchErrors: c.fetchErrs - prev.fetchErrs,
		Patches:     c.patches - prev.patches,
	}
	r.next = (r.next + 1) % historySize
	r.last = c
}

func (r *ring) samples() []sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sample, 0, historySize)
	for i := range historySize {
		if s := r.buf[(r.next+i)%historySize]; s.T != 0 {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot is what /stats serves: running totals plus per-second history.
type Snapshot struct {
	Total   map[string]uint64 `json:"total"`
	History []sample          `json:"history"`
}

// Stats returns the current totals and the recent history.
func Stats() Snapshot {
	return Snapshot{
		Total: map[string]uint64{
			"requests":          RequestsTotal.Load(),
			"ok":                RequestsOK.Load(),
			"inbound_429":       Inbound429.Load(),
			"cache_hits":        CacheHits.Load(),
			"cache_misses":      CacheMisses.Load(),
			"cache_evictions":   CacheEvictions.Load(),
			"fetches":           Fetches.Load(),
			"fetch_errors":      FetchErrors.Load(),
			"stream_reconnects": StreamReconnects.Load(),
			"stream_failures":   StreamFailures.Load(),
			"patches_applied":   PatchesApplied.Load(),
			"patches_dropped":   PatchesDropped.Load(),
		},
		History: history.samples(),
	}
}

// ServeJSON writes Stats as JSON.
func ServeJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Stats()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ServeMonitor writes the monitoring HTML page.
func ServeMonitor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(monitorHTML)
}

// statusWriter counts successful responses as they are written.
type statusWriter struct {
	http.ResponseWriter
	counted bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.counted && code >= 200 && code < 300 {
		RequestsOK.Add(1)
	}
	w.counted = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.counted {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush lets the event stream flush through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware counts API requests and their 2xx responses. The monitoring
// endpoints are left out so the graph shows popup traffic only.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats", "/monitor":
			next.ServeHTTP(w, r)
			return
		}
		RequestsTotal.Add(1)
		next.ServeHTTP(&statusWriter{ResponseWriter: w}, r)
	})
}
