// Command cardstore manages a local Kanban board: nested cards, tags,
// checklists, file attachments and zip archives of folder trees. The board
// lives in a SQLite database under .cardstore/ of the working directory.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/calvinalkan/cardstore/internal/cli"
)

func main() {
	// Interrupts cancel the command context; a running import or export
	// then rolls back and removes its staging directory.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, environ(), interrupts))
}

// environ returns the process environment as a map for config loading.
func environ() map[string]string {
	env := map[string]string{}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return env
}
