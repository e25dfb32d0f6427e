package main

import (
	"os"

	"github.com/pqmsg/pqmsg/cmd/pqmsg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
