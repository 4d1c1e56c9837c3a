package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dev/bravebird/storefront-e2e/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewApp(), os.Args[1:])
	stop()
	os.Exit(code)
}
