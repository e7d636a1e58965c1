// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/clipforge/clipforge/internal/config"
)

// runHealthcheckCLI probes the running daemon over HTTP. Container health
// checks and the game client launcher both shell out to this instead of
// carrying their own HTTP client.
func runHealthcheckCLI(args []string) int {
	fs := flag.NewFlagSet("clipforge healthcheck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	mode := fs.String("mode", "ready", "check mode: ready (dependencies reachable) or live (process up)")
	addr := fs.String("addr", config.DefaultListenAddr, "daemon API address (host:port)")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var path string
	switch *mode {
	case "ready":
		path = "/readyz"
	case "live":
		path = "/healthz"
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s (use ready or live)\n", *mode)
		return 2
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(fmt.Sprintf("http://%s%s", *addr, path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fmt.Fprintf(os.Stderr, "healthcheck failed: %s returned %d: %s\n", path, resp.StatusCode, body)
		return 1
	}
	return 0
}
