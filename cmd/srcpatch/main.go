package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/srcpatch/internal/cli"
)

// main applies a batch of patches to a source tree.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
