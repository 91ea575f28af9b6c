// Command occupancyctl operates the occupancy engine: it bootstraps the
// topology, manages persons and links, exports snapshots and serves the
// HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, newCLI(os.Stdout), os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}
