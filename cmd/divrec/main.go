// Command divrec reports how many trading days dividend-paying stocks take to recover
// their dividends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dividend-recovery/internal/cli"
	apperrors "dividend-recovery/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var verr *apperrors.ValidationError
		if apperrors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, "Run 'divrec help' for usage.")
		}
		stop()
		os.Exit(1)
	}
}
