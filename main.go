package main

import (
	"os"

	"github.com/tickwise/tickwise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
