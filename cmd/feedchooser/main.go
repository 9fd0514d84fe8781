package main

import (
	"fmt"
	"os"

	_ "github.com/git-pkgs/feedchooser/all"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
