package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/marcin-skalski/review-radar/internal/cmd"
)

var version = "dev"

func main() {
	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("review-radar"),
		kong.Description("Watches your GitHub review queue and tells you when something needs you."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
