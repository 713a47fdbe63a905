package main

import (
	"os"

	"github.com/telhawk-systems/userrelay/cmd/relayctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
