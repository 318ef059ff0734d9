// Command cortexos is the CLI entry point: it either dispatches into a
// forked pool-worker (spec §4.G, when launched with --pool-worker) or
// runs the cobra root command built in internal/cmdline.
package main

import (
	"fmt"
	"os"

	"github.com/cortexos/cortexos/internal/claude"
	"github.com/cortexos/cortexos/internal/cmdline"
	"github.com/cortexos/cortexos/internal/config"
	"github.com/cortexos/cortexos/internal/pool"
	"github.com/cortexos/cortexos/internal/toolregistry"
)

// Version is the current version of the cortexos binary, injected at
// build time via -ldflags.
var Version = "1.0.0"

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--pool-worker" {
			if err := runPoolWorker(); err != nil {
				fmt.Fprintf(os.Stderr, "pool worker error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	cmdline.Version = Version
	root := cmdline.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runPoolWorker is the --pool-worker entry point a parent Pool
// launches (internal/pool/forked.go's runForked): it builds the same
// default provider/tool wiring as the interactive CLI and hands off to
// pool.RunWorker for the newline-delimited JSON IPC loop over
// stdin/stdout.
func runPoolWorker() error {
	cfg := config.Default()

	reg := toolregistry.NewRegistry()
	if err := toolregistry.RegisterBuiltins(reg); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	tools := toolregistry.NewExecutor(reg)

	prov := claude.New("claude", "", cfg.Pool.TaskTimeout)

	return pool.RunWorker(os.Stdin, os.Stdout, prov, tools)
}
