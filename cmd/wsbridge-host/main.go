// Package main provides wsbridge-host, a standalone host that runs the
// WebSocket bridge with a bundled echo script.
package main

import (
	"os"

	"github.com/sirosfoundation/go-wsbridge/cmd/wsbridge-host/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
