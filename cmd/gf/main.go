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

	cmd := cli.NewTrainCommand(config.ModelGF, "Graph factorization baseline", "./gf --input net.txt --output rep.txt --dim 128 --epochs 100 --lr 0.01 --lambda 1")
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
