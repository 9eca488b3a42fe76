// Command lexcased runs the lexcase analysis daemon in the foreground.
//
// It is equivalent to `lexcase serve` and exists for service managers that
// prefer a dedicated binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"lexcase/internal/config"
	"lexcase/internal/daemonrun"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv("LEXCASE_CONFIG")); err != nil {
		fmt.Fprintf(os.Stderr, "lexcased: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{})
}
