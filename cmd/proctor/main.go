package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes. A run whose tasks fail verification still exits 0: the
// harness did its job and the results are the product. Non-zero is
// reserved for the harness itself failing.
const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitInterrupt = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, context.Canceled) {
			os.Exit(ExitInterrupt)
		}
		os.Exit(ExitError)
	}
}
