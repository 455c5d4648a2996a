package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type benchConfig struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	rps         float64
	sources     string
	limit       int
	queries     []string
}

type benchStats struct {
	total       atomic.Int64
	success     atomic.Int64
	errors      atomic.Int64
	latencies   []time.Duration
	statusCodes map[int]int64
	mu          sync.Mutex
}

func (s *benchStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil || status < 200 || status >= 300 {
		s.errors.Add(1)
	} else {
		s.success.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func newBenchCmd() *cobra.Command {
	cfg := &benchConfig{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test the search endpoint of a running matchd",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.queries) == 0 {
				return fmt.Errorf("at least one --query is required")
			}
			stats := runBench(cmd.Context(), cfg)
			return printBench(cmd.OutOrStdout(), stats, cfg.duration)
		},
	}
	cmd.Flags().StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of matchd")
	cmd.Flags().IntVarP(&cfg.concurrency, "concurrency", "c", 10, "concurrent workers")
	cmd.Flags().DurationVarP(&cfg.duration, "duration", "d", 30*time.Second, "test duration")
	cmd.Flags().Float64Var(&cfg.rps, "rps", 0, "overall request rate cap (0 for none)")
	cmd.Flags().StringVar(&cfg.sources, "sources", "", "comma-separated sources to search")
	cmd.Flags().IntVar(&cfg.limit, "limit", 10, "results per query")
	cmd.Flags().StringArrayVarP(&cfg.queries, "query", "q", nil, "query to cycle through (repeatable)")
	return cmd
}

func runBench(ctx context.Context, cfg *benchConfig) *benchStats {
	stats := &benchStats{statusCodes: make(map[int]int64)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), max(int(cfg.rps), 1))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				params := url.Values{}
				params.Set("q", cfg.queries[i%len(cfg.queries)])
				params.Set("limit", fmt.Sprint(cfg.limit))
				if cfg.sources != "" {
					params.Set("sources", cfg.sources)
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.baseURL+"/api/v1/search?"+params.Encode(), nil)
				if err != nil {
					stats.record(0, 0, err)
					return
				}

				start := time.Now()
				resp, err := client.Do(req)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					stats.record(time.Since(start), 0, err)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(time.Since(start), resp.StatusCode, nil)
			}
		}()
	}
	wg.Wait()
	return stats
}

func printBench(out io.Writer, stats *benchStats, duration time.Duration) error {
	total := stats.total.Load()
	if total == 0 {
		return fmt.Errorf("no requests completed, is matchd running?")
	}

	w := newTable(out)
	fmt.Fprintf(w, "requests\t%d\n", total)
	fmt.Fprintf(w, "successful\t%d\n", stats.success.Load())
	fmt.Fprintf(w, "errors\t%d (%.2f%%)\n", stats.errors.Load(), float64(stats.errors.Load())/float64(total)*100)
	fmt.Fprintf(w, "requests/sec\t%.2f\n", float64(total)/duration.Seconds())

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sq += diff * diff
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "min\t%s\n", latencies[0])
		fmt.Fprintf(w, "avg\t%s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "p%.0f\t%s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "max\t%s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "stddev\t%s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	slices.Sort(codes)
	fmt.Fprintln(w)
	for _, code := range codes {
		fmt.Fprintf(w, "status %d\t%d\n", code, stats.statusCodes[code])
	}
	return w.Flush()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
