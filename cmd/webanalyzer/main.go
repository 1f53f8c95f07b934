package main

import (
	"os"

	"github.com/arvindnair/webanalyzer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
