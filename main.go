package main

import (
	"os"

	"github.com/conneroisu/sitepack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
