// Load test: drive the popup endpoints hard enough to trip the inbound limit.
//
//	go run ./cmd/loadtest
//	go run ./cmd/loadtest -url http://localhost:8080 -n 120 -workers 4
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

var paths = []string{"/ladder", "/games", "/rounds", "/health"}

type tally struct {
	ok, limited, other atomic.Int64
	retryAfter         atomic.Value
}

func (t *tally) hit(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf("%s: %v\n", url, err)
		t.other.Add(1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		t.ok.Add(1)
	case http.StatusTooManyRequests:
		t.limited.Add(1)
		t.retryAfter.Store(resp.Header.Get("Retry-After"))
	default:
		t.other.Add(1)
		fmt.Printf("%s: HTTP %d\n", url, resp.StatusCode)
	}
}

// serverCount reads one counter from /stats, which is never rate limited.
func serverCount(client *http.Client, base, name string) (uint64, error) {
	resp, err := client.Get(base + "/stats")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, err
	}
	totals, _ := stats["total"].(map[string]any)
	v, _ := totals[name].(float64)
	return uint64(v), nil
}

func main() {
	base := flag.String("url", "http://localhost:8080", "Base URL of the server")
	n := flag.Int("n", 80, "Requests per worker")
	workers := flag.Int("workers", 1, "Concurrent workers sharing one client IP")
	delay := flag.Duration("delay", 20*time.Millisecond, "Delay between a worker's requests")
	flag.Parse()

	total := *n * *workers
	fmt.Printf("Load test: %d requests over %v from %d workers\n", total, paths, *workers)
	fmt.Println("Expect: the first requests up to the inbound limit succeed, the rest get 429")
	fmt.Println()

	client := &http.Client{Timeout: 10 * time.Second}
	before, _ := serverCount(client, *base, "inbound_429")

	var t tally
	var g errgroup.Group
	start := time.Now()
	for w := 0; w < *workers; w++ {
		g.Go(func() error {
			for i := 0; i < *n; i++ {
				t.hit(client, *base+paths[(w+i)%len(paths)])
				time.Sleep(*delay)
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Printf("Results after %s:\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  200 OK: %d\n", t.ok.Load())
	fmt.Printf("  429 Rate Limited: %d\n", t.limited.Load())
	fmt.Printf("  Other: %d\n", t.other.Load())
	if ra, ok := t.retryAfter.Load().(string); ok {
		fmt.Printf("  Retry-After: %ss\n", ra)
	}
	if after, err := serverCount(client, *base, "inbound_429"); err == nil {
		fmt.Printf("  server inbound_429: +%d\n", after-before)
	}
	fmt.Println()

	if t.limited.Load() == 0 {
		fmt.Println("No 429s observed. Inbound limit may be higher than requests sent or server not running.")
		os.Exit(1)
	}
	fmt.Println("Rate limiting is working.")
}
