// Package main provides the pman CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
)

func main() {
	if err := disableCoreDumps(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not disable core dumps: %v\n", err)
	}

	// Ctrl-C wipes every locked buffer before exiting.
	memguard.CatchSignal(func(_ os.Signal) {
		fmt.Fprint(os.Stderr, "\n\n  -- cancelled!\n\n")
	}, os.Interrupt)

	memguard.SafeExit(execute())
}
