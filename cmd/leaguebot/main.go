// Command leaguebot operates a prediction league ledger. It loads
// configuration, wires the ledger and its infrastructure, and exposes league,
// prediction, outcome, score and resolution commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdout, os.Stderr)
	err := c.root().ExecuteContext(ctx)
	c.close()

	if err != nil {
		// context.Canceled is expected on interrupt.
		if errors.Is(err, context.Canceled) {
			c.logger.Info("leaguebot interrupted")
			return
		}
		c.logger.Error("command failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
