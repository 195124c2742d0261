package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ui_verification/presentation/terminal"
)

func main() {
	termInterface, err := terminal.NewTerminalInterface(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(terminal.ExitOK)
		}
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(terminal.ExitConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := termInterface.Run(ctx)
	stop()

	os.Exit(code)
}
