package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run assembles the application and serves until SIGINT or SIGTERM.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
