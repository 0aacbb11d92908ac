package main

import (
	"os"

	"github.com/conneroisu/spoon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
