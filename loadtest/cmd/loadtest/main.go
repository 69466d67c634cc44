// Package main is the entry point for the roulette load test binary.
// It provides subcommands for different load testing scenarios:
//
//   - seed:  Provision participant profiles in Postgres
//   - match: Pairing flow load test
//   - chat:  Full session lifecycle load test
//
// Usage:
//
//	loadtest <command> [options]
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		runSeed(os.Args[2:])
	case "match":
		runMatch(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// participantID returns the deterministic id of the nth simulated
// participant. The seed command and the scenarios must agree on these.
func participantID(n int) string {
	return fmt.Sprintf("lt-%06d", n)
}

func printUsage() {
	fmt.Println("Usage: loadtest <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  seed        Provision N participant profiles in Postgres")
	fmt.Println("  match       Pairing flow load test — participants enter the queue and wait for matches")
	fmt.Println("  chat        Full session lifecycle load test — pair, exchange messages, rate, end")
	fmt.Println()
	fmt.Println("Run 'loadtest <command> -h' for command-specific options.")
}
