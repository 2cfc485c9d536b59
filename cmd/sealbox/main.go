package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/sealbox/internal/api"
)

var Version = "dev"

func main() {
	a := &app{out: os.Stdout, errOut: os.Stderr, password: promptPassword}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(a).ExecuteContext(ctx)

	stop()
	a.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe renders err for the terminal, flagging failures that are
// worth trying again. Nothing is retried automatically.
func describe(err error) string {
	if errors.Is(err, context.Canceled) {
		return "interrupted"
	}

	if api.IsTransient(err) {
		return err.Error() + " (temporary, try again)"
	}

	return err.Error()
}
