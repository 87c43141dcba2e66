// Package main provides the dstore CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/dstore/internal/cli"
	"github.com/roach88/dstore/internal/lifecycle"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Interrupt, terminate and hangup flush every open store, then exit.
	shutdown := lifecycle.New()
	stop := shutdown.Listen(ctx)
	defer stop()

	err := cli.NewRootCommand(shutdown).ExecuteContext(ctx)
	if hookErr := shutdown.Shutdown(); hookErr != nil && err == nil {
		err = cli.Failure("E_SHUTDOWN", "shutdown flush failed", hookErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		shutdown.Exit(cli.ExitCode(err))
	}
}
