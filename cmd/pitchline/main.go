package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/observability"
)

var version = "0.1.0"

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)

	// flush spans and logs whether or not the command failed
	if serr := observability.Shutdown(context.Background()); serr != nil {
		fmt.Fprintln(os.Stderr, serr)
	}
	_ = logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
