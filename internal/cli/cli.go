// Package cli is the single entrypoint main calls into; it exists so
// main.go stays a one-liner.
package cli

import (
	"github.com/nodo1014/indexer-quick/internal/cli/commands"
)

// Run executes the root cobra command.
func Run() {
	commands.Execute()
}
