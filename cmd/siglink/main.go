package main

import (
	"os"

	"github.com/signal-golang/siglink/cmd/siglink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
