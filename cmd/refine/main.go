package main

import (
	"os"

	"go-refine-pipeline/cmd/refine/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
