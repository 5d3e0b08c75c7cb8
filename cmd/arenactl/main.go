// Command arenactl reads and writes the battle arena contracts from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Debug("command failed", zap.Error(err))
		_ = zap.L().Sync()
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), arenakit.UserMessage(err))
		os.Exit(1)
	}
	_ = zap.L().Sync()
}
