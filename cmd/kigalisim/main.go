// Command kigalisim is a command-line interface for the Kigali Sim
// stock-and-flow simulation core.
package main

import (
	"fmt"
	"os"

	"github.com/kigalisim/core/internal/cmd"
)

func main() {
	if err := cmd.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
