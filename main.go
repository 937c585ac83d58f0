package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/smazurov/proclaunch/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.NewRootCmd().ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	var status *cmd.ExitStatusError
	if errors.As(err, &status) {
		os.Exit(status.Code)
	}
	os.Exit(1)
}
