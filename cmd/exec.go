package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cwbudde/mcsbridge/internal/bridge"
	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
)

var execCmd = &cobra.Command{
	Use:   "exec <script>",
	Short: "Execute a Starlark script",
	Long: `Executes a Starlark script with the optimizer builtins predeclared:

  mcs(n, func, u, v, nsweeps, nf, local, gamma, smax, hess=None)
      -> (xbest, fbest, ncall, ncloc, flag)
  mayfly(n, func, u, v, iters=100, pop=30, seed=42)
      -> (xbest, fbest, ncall)

print() writes to standard output. An interrupt cancels the script.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	rt := host.NewRuntime(bridge.Builtins())
	thread := rt.NewThread("main")
	thread.Print = func(_ *starlark.Thread, msg string) {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	cancel := context.AfterFunc(ctx, func() {
		thread.Cancel("interrupted")
	})
	defer cancel()

	if _, err := rt.ExecFile(thread, args[0], nil); err != nil {
		return err
	}
	return nil
}
