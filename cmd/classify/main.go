package main

import (
	"fmt"
	"os"

	"github.com/cnclabs/openne/internal/cli"
)

func main() {
	if err := cli.NewClassifyCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
