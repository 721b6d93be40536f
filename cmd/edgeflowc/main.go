package main

import (
	"os"

	"github.com/lucasnoah/edgeflowc/internal/cli"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cli.SetVersion(Version)
	os.Exit(cli.Main(os.Args[1:]))
}
