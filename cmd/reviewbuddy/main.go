// Command reviewbuddy watches a place-details page in Chrome and shows a
// review score for the place next to it.
//
// Usage:
//
//	reviewbuddy watch --config reviewbuddy.yaml
//	reviewbuddy watch --url https://www.google.com/search?q=cafe+luna --status-addr 127.0.0.1:8089 --mcp
//	reviewbuddy inspect saved-page.html --score
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
