// Command streamsock opens a stream socket, optionally upgrades it to
// TLS in place, and exchanges data with the peer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"streamsock/cmd"
	ncerr "streamsock/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "streamsock: %v\n", err)
	var ce *ncerr.ConfigError
	if errors.As(err, &ce) {
		os.Exit(2)
	}
	os.Exit(1)
}
