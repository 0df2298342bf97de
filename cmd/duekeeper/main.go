package main

import (
	"os"

	"github.com/duekeeper/duekeeper/cmd/duekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
