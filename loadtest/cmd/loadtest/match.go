package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rouletka/roulette/loadtest/client"
	"github.com/rouletka/roulette/loadtest/stats"
)

// runMatch implements the pairing flow load test. It connects N simulated
// participants, publishes pair.request from all of them, and waits for the
// engine to pair everyone up. This test measures matching throughput and
// queue wait latency under concurrent load.
func runMatch(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	url := fs.String("url", "nats://localhost:4222", "NATS server URL")
	count := fs.Int("participants", 1000, "Number of participants to pair (use an even number)")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration for connection creation")
	matchTimeout := fs.Duration("match-timeout", 60*time.Second, "Timeout waiting for match_found")
	language := fs.String("language", "", "Strict language filter (empty = no filter)")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous connection attempts during ramp-up")
	metricsURL := fs.String("metrics-url", "http://localhost:9090/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	fmt.Printf("Match test: %d participants to %s (ramp=%s, match-timeout=%s, language=%q, concurrency=%d)\n",
		*count, *url, *rampUp, *matchTimeout, *language, *concurrency)

	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	// Set up metrics scraper.
	scraper := stats.NewScraper(*metricsURL, *scrapeInterval)
	collector.SetScraper(scraper)
	scraper.Start(ctx)

	clients, interrupted := connectAll(ctx, collector, *url, *count, *rampUp, *concurrency)
	if interrupted {
		fmt.Println("Interrupted — skipping matching phase.")
		cleanup(clients)
		scraper.Stop()
		collector.Report()
		return
	}

	// -----------------------------------------------------------------------
	// Phase 2 — Register handlers and send pair.request from all clients
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 2: Start matching ---")

	var matchedCount atomic.Int64

	// WaitGroup for all client goroutines that wait out the match flow.
	var matchWg sync.WaitGroup

	fmt.Printf("Sending pair.request from %d clients...\n", len(clients))

	matchStart := time.Now()

	for _, c := range clients {
		c := c
		matchWg.Add(1)

		// Per-client channel to signal when match_found is received.
		matchDone := make(chan struct{})

		c.On(client.EventMatchFound, func(e client.Event) {
			collector.AddMatchLatency(time.Since(matchStart))
			matchedCount.Add(1)
			close(matchDone)
		})

		// Per-client goroutine to enforce the match timeout.
		go func() {
			defer matchWg.Done()

			timeoutTimer := time.NewTimer(*matchTimeout)
			defer timeoutTimer.Stop()

			select {
			case <-matchDone:
			case <-timeoutTimer.C:
				collector.AddError()
			case <-ctx.Done():
			}
		}()

		if err := c.RequestPairing(*language, nil); err != nil {
			collector.AddError()
		}
	}

	// -----------------------------------------------------------------------
	// Phase 3 — Wait for matches with progress reporting
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 3: Waiting for matches ---")

	matchProgressStop := make(chan struct{})
	var matchProgressWg sync.WaitGroup
	matchProgressWg.Add(1)
	go func() {
		defer matchProgressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastMatched := int64(0)
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentMatched := matchedCount.Load()
				currentErrors := collector.ErrorCount()
				dt := now.Sub(lastTime).Seconds()
				matchRate := float64(currentMatched-lastMatched) / dt
				fmt.Printf("  [match] matched: %d/%d  pairs: %d  errors: %d  rate: %.1f match/s\n",
					currentMatched, len(clients), currentMatched/2, currentErrors, matchRate)
				lastMatched = currentMatched
				lastTime = now
			case <-matchProgressStop:
				return
			}
		}
	}()

	// Wait for all client goroutines to complete (match or timeout).
	allDone := make(chan struct{})
	go func() {
		matchWg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
		fmt.Println("\nInterrupted during matching phase.")
	}

	close(matchProgressStop)
	matchProgressWg.Wait()

	matchElapsed := time.Since(matchStart)

	// -----------------------------------------------------------------------
	// Final report
	// -----------------------------------------------------------------------
	finalMatched := matchedCount.Load()
	successfulPairs := finalMatched / 2

	fmt.Printf("\n--- Match Results ---\n")
	fmt.Printf("Successful pairs:  %d / %d\n", successfulPairs, len(clients)/2)
	fmt.Printf("Clients matched:   %d / %d\n", finalMatched, len(clients))
	fmt.Printf("Match duration:    %s\n", matchElapsed.Round(time.Millisecond))
	if matchElapsed.Seconds() > 0 {
		fmt.Printf("Match throughput:  %.1f pairs/s\n", float64(successfulPairs)/matchElapsed.Seconds())
	}

	cleanup(clients)
	scraper.Stop()
	collector.Report()
}

// connectAll ramps up N simulated participants, bounding concurrent
// connection attempts, with periodic progress output. The returned slice
// holds only the clients that connected; the bool reports interruption.
func connectAll(ctx context.Context, collector *stats.Collector, url string, count int, rampUp time.Duration, concurrency int) ([]*client.Client, bool) {
	fmt.Println("\n--- Phase 1: Connect all participants ---")

	interval := rampUp / time.Duration(count)
	if interval <= 0 {
		interval = time.Millisecond
	}

	var mu sync.Mutex
	clients := make([]*client.Client, 0, count)
	interrupted := false

	// Semaphore to bound concurrent connection attempts.
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	// Progress reporting: every 2 seconds during ramp-up.
	progressStop := make(chan struct{})
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastCount := 0
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentConns := collector.ConnectionCount()
				currentErrs := collector.ErrorCount()
				dt := now.Sub(lastTime).Seconds()
				rate := float64(currentConns-lastCount) / dt
				fmt.Printf("  [connect] connections: %d/%d  errors: %d  rate: %.1f conn/s\n",
					currentConns, count, currentErrs, rate)
				lastCount = currentConns
				lastTime = now
			case <-progressStop:
				return
			}
		}
	}()

	rampStart := time.Now()
	rampTicker := time.NewTicker(interval)

	launched := 0
	for launched < count {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted during connection phase.")
			interrupted = true
			launched = count // Break the loop.
		case <-rampTicker.C:
			n := launched
			launched++
			wg.Add(1)
			sem <- struct{}{} // Acquire semaphore slot.

			go func() {
				defer wg.Done()
				defer func() { <-sem }() // Release semaphore slot.

				c, err := client.New(url, participantID(n))
				if err != nil {
					collector.AddError()
					return
				}

				m := c.GetMetrics()
				collector.AddConnect(m.ConnectLatency)

				mu.Lock()
				clients = append(clients, c)
				mu.Unlock()
			}()
		}
	}

	rampTicker.Stop()
	wg.Wait()
	close(progressStop)
	progressWg.Wait()

	rampElapsed := time.Since(rampStart)
	fmt.Printf("\nPhase 1 complete: %d/%d connections in %s (%d errors)\n",
		len(clients), count,
		rampElapsed.Round(time.Millisecond), collector.ErrorCount())

	return clients, interrupted
}

// cleanup closes all client connections.
func cleanup(clients []*client.Client) {
	fmt.Println("\n--- Cleanup ---")
	fmt.Printf("Closing %d connections...\n", len(clients))
	for _, c := range clients {
		c.Close()
	}
	fmt.Println("All connections closed.")
}
