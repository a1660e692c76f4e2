package main

import (
	"os"

	"github.com/psantana5/regtimer/cmd/regtimer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
