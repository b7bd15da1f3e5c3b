package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cnclabs/openne/internal/cli"
	"github.com/cnclabs/openne/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewTrainCommand(config.ModelLINE, "Golang implementation of LINE", "./line --input net.txt --output rep.txt --order 3 --dim 128 --negative-ratio 5 --epochs 40")
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
