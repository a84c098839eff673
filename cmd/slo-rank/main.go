package main

import (
	"os"

	"github.com/miradorstack/slo-ranker/cmd/slo-rank/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
