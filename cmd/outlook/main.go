package main

import (
	"os"

	"github.com/yourname/outlook-cli/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
