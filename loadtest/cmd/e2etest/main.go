// Package main implements a standalone end-to-end integration test for the
// Rouletka pairing engine. It validates the full participant journey against
// a running stack: metrics endpoint, NATS connectivity, pairing, message
// relay, moderation, session end, and rating.
//
// The two participant profiles must exist before the run; seed them with
// "loadtest seed -count 2" or pass existing ids via -p1/-p2.
//
// Usage:
//
//	go run ./cmd/e2etest/ [-url nats://localhost:4222] [-metrics http://localhost:9090] [-timeout 60s]
//
// Exit code 0 if all required scenarios pass, 1 if any fail.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rouletka/roulette/loadtest/client"
)

// ---------------------------------------------------------------------------
// Result tracking
// ---------------------------------------------------------------------------

// resultKind categorises a scenario outcome.
type resultKind int

const (
	resultPass resultKind = iota
	resultFail
	resultInfo // optional / non-fatal
)

// scenarioResult holds the outcome of a single test scenario.
type scenarioResult struct {
	name   string
	kind   resultKind
	detail string
}

func (r scenarioResult) tag() string {
	switch r.kind {
	case resultPass:
		return "PASS"
	case resultFail:
		return "FAIL"
	default:
		return "INFO"
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	natsURL := flag.String("url", "nats://localhost:4222", "NATS server URL")
	metricsBase := flag.String("metrics", "http://localhost:9090", "Metrics base URL")
	p1 := flag.String("p1", "lt-000000", "First seeded participant id")
	p2 := flag.String("p2", "lt-000001", "Second seeded participant id")
	timeout := flag.Duration("timeout", 60*time.Second, "Global test timeout")
	flag.Parse()

	fmt.Println("=== Rouletka E2E Integration Test ===")
	fmt.Printf("Server: %s\n\n", *natsURL)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var results []scenarioResult

	results = append(results, scenario1Metrics(ctx, *metricsBase))

	// Scenarios 2-5 share a matched pair; run them as a group.
	s2, s3, s4, s5 := scenarioPairChatEndRate(ctx, *natsURL, *p1, *p2)
	results = append(results, s2, s3, s4, s5)

	// Optional scenario (non-fatal): moderation warning.
	results = append(results, scenario6Moderation(ctx, *natsURL, *p1, *p2))

	// ---------------------------------------------------------------------------
	// Summary
	// ---------------------------------------------------------------------------
	fmt.Println()
	passed := 0
	failed := 0
	info := 0
	for _, r := range results {
		fmt.Printf("[%s] %s", r.tag(), r.name)
		if r.detail != "" {
			fmt.Printf(" (%s)", r.detail)
		}
		fmt.Println()

		switch r.kind {
		case resultPass:
			passed++
		case resultFail:
			failed++
		case resultInfo:
			info++
		}
	}

	requiredTotal := passed + failed
	fmt.Printf("\n=== Results: %d/%d passed", passed, requiredTotal)
	if info > 0 {
		fmt.Printf(", %d info", info)
	}
	fmt.Println(" ===")

	if failed > 0 {
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Scenario 1: Metrics endpoint
// ---------------------------------------------------------------------------

func scenario1Metrics(ctx context.Context, metricsBase string) scenarioResult {
	name := "Scenario 1: Metrics Endpoint"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metricsBase+"/metrics", nil)
	if err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return scenarioResult{name, resultFail, fmt.Sprintf("/metrics status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scenarioResult{name, resultFail, err.Error()}
	}
	if !strings.Contains(string(body), "roulette_queue_size") {
		return scenarioResult{name, resultFail, "roulette_queue_size not exposed"}
	}
	return scenarioResult{name, resultPass, ""}
}

// ---------------------------------------------------------------------------
// Scenarios 2-5: Pair, chat, end, rate
// ---------------------------------------------------------------------------

// matchedPair holds one connected participant and what it observed.
type matchedPair struct {
	c         *client.Client
	matched   chan client.Event
	ended     chan client.Event
	delivered chan client.Delivery
}

func connect(url, id string) (*matchedPair, error) {
	c, err := client.New(url, id)
	if err != nil {
		return nil, err
	}
	p := &matchedPair{
		c:         c,
		matched:   make(chan client.Event, 1),
		ended:     make(chan client.Event, 1),
		delivered: make(chan client.Delivery, 16),
	}
	c.On(client.EventMatchFound, func(e client.Event) { p.matched <- e })
	c.On(client.EventSessionEnded, func(e client.Event) { p.ended <- e })
	c.OnDeliver(func(d client.Delivery) { p.delivered <- d })
	return p, nil
}

func scenarioPairChatEndRate(ctx context.Context, url, id1, id2 string) (s2, s3, s4, s5 scenarioResult) {
	s2 = scenarioResult{name: "Scenario 2: Pairing"}
	s3 = scenarioResult{name: "Scenario 3: Message Relay"}
	s4 = scenarioResult{name: "Scenario 4: End Session"}
	s5 = scenarioResult{name: "Scenario 5: Rating"}

	fail := func(r *scenarioResult, detail string) {
		r.kind = resultFail
		r.detail = detail
	}
	skip := func(r *scenarioResult) {
		r.kind = resultInfo
		r.detail = "skipped: earlier scenario failed"
	}

	a, err := connect(url, id1)
	if err != nil {
		fail(&s2, "connect "+id1+": "+err.Error())
		skip(&s3)
		skip(&s4)
		skip(&s5)
		return
	}
	defer a.c.Close()

	b, err := connect(url, id2)
	if err != nil {
		fail(&s2, "connect "+id2+": "+err.Error())
		skip(&s3)
		skip(&s4)
		skip(&s5)
		return
	}
	defer b.c.Close()

	// Scenario 2: both request pairing and must be matched with each other.
	if err := a.c.RequestPairing("", nil); err != nil {
		fail(&s2, err.Error())
	}
	if err := b.c.RequestPairing("", nil); err != nil {
		fail(&s2, err.Error())
	}

	var sessionID string
	select {
	case e := <-a.matched:
		sessionID = e.SessionID
		if e.PartnerID != id2 {
			fail(&s2, fmt.Sprintf("matched with %s, want %s", e.PartnerID, id2))
		}
	case <-ctx.Done():
		fail(&s2, "timeout waiting for match_found")
	}
	select {
	case <-b.matched:
	case <-ctx.Done():
		fail(&s2, "partner never received match_found")
	}
	if s2.kind == resultFail {
		skip(&s3)
		skip(&s4)
		skip(&s5)
		return
	}

	// Scenario 3: relay a message each way.
	if err := a.c.SendText(sessionID, "hello over there"); err != nil {
		fail(&s3, err.Error())
	}
	select {
	case d := <-b.delivered:
		if d.Text != "hello over there" {
			fail(&s3, fmt.Sprintf("delivered %q", d.Text))
		}
	case <-ctx.Done():
		fail(&s3, "message never delivered to partner")
	}
	if s3.kind != resultFail {
		if err := b.c.SendText(sessionID, "hello right back"); err != nil {
			fail(&s3, err.Error())
		}
		select {
		case <-a.delivered:
		case <-ctx.Done():
			fail(&s3, "reply never delivered")
		}
	}

	// Scenario 4: one side ends, the other is told.
	if err := a.c.EndChat(sessionID); err != nil {
		fail(&s4, err.Error())
	}
	select {
	case <-b.ended:
	case <-ctx.Done():
		fail(&s4, "partner never received session_ended")
	}
	if s4.kind == resultFail {
		skip(&s5)
		return
	}

	// Scenario 5: both rate the finished session. No reply channel exists,
	// so success here means the publishes were accepted.
	time.Sleep(500 * time.Millisecond)
	if err := a.c.Rate(sessionID, 5); err != nil {
		fail(&s5, err.Error())
	}
	if err := b.c.Rate(sessionID, 4); err != nil {
		fail(&s5, err.Error())
	}
	if err := a.c.Flush(); err != nil {
		fail(&s5, err.Error())
	}
	return
}

// ---------------------------------------------------------------------------
// Scenario 6: Moderation (optional)
// ---------------------------------------------------------------------------

func scenario6Moderation(ctx context.Context, url, id1, id2 string) scenarioResult {
	name := "Scenario 6: Moderation Warning"

	a, err := connect(url, id1)
	if err != nil {
		return scenarioResult{name, resultInfo, "connect: " + err.Error()}
	}
	defer a.c.Close()
	b, err := connect(url, id2)
	if err != nil {
		return scenarioResult{name, resultInfo, "connect: " + err.Error()}
	}
	defer b.c.Close()

	warned := make(chan client.Event, 1)
	a.c.On(client.EventWarning, func(e client.Event) { warned <- e })

	if err := a.c.RequestPairing("", nil); err != nil {
		return scenarioResult{name, resultInfo, err.Error()}
	}
	if err := b.c.RequestPairing("", nil); err != nil {
		return scenarioResult{name, resultInfo, err.Error()}
	}

	var sessionID string
	select {
	case e := <-a.matched:
		sessionID = e.SessionID
	case <-ctx.Done():
		return scenarioResult{name, resultInfo, "no match"}
	}

	// Mildly toxic text should relay with a warning pushed to the sender.
	if err := a.c.SendText(sessionID, "you are so stupid"); err != nil {
		return scenarioResult{name, resultInfo, err.Error()}
	}

	defer func() {
		_ = a.c.EndChat(sessionID)
		_ = a.c.Flush()
	}()

	warnWait := time.NewTimer(5 * time.Second)
	defer warnWait.Stop()
	select {
	case <-warned:
		return scenarioResult{name, resultPass, ""}
	case <-warnWait.C:
		return scenarioResult{name, resultInfo, "no warning event within 5s"}
	case <-ctx.Done():
		return scenarioResult{name, resultInfo, "timeout"}
	}
}
