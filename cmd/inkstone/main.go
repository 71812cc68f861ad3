package main

import (
	"os"

	"github.com/inkstone-dev/inkstone/cmd/inkstone/commands"
	"github.com/inkstone-dev/inkstone/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
