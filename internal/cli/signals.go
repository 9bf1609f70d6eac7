package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context that is cancelled by the first
// SIGINT or SIGTERM so the server can flush the store. A second signal
// exits without waiting.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			signal.Stop(sigs)
			return
		case sig := <-sigs:
			fmt.Fprintf(os.Stderr, "\n%s received, saving and shutting down\n", sig)
			cancel()
		}
		// a second signal skips the final save
		sig := <-sigs
		fmt.Fprintf(os.Stderr, "\n%s again, exiting now\n", sig)
		os.Exit(1)
	}()
	return ctx, cancel
}
