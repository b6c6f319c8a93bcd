// Program server runs the network-accessible job server: an in-memory job
// registry exposed over the REST surface implemented by httpapi.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kkloberdanz/jobrun/httpapi"
	"github.com/kkloberdanz/jobrun/logging"
	"github.com/kkloberdanz/jobrun/registry"
)

var verbose bool

func main() {
	logging.Init()

	rootCmd := &cobra.Command{
		Use:   "server [-v] [ADDRESS]",
		Short: "Run the job server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var addr string
	if len(args) > 0 {
		addr = args[0]
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("server: failed to determine working directory: %w", err)
	}

	reg := registry.New(cwd)
	srv := httpapi.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	return srv.Run(ctx, addr)
}
