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

	cmd := cli.NewTrainCommand(config.ModelLAP, "Laplacian eigenmaps baseline", "./lap --input net.txt --output rep.txt --dim 128")
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
