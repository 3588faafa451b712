// Command tutorctl talks to a running tutor server from the terminal.
package main

import (
	"fmt"
	"os"

	"tutor/tutor/utils/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.ColorError("error: "+err.Error()))
		os.Exit(1)
	}
}
