package main

import (
	"os"

	"github.com/fxlab/simtrader/cmd/simtrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
