package main

import (
	"context"
	"fmt"
	"os"

	"github.com/based-rollup/sequencer/internal/bootstrap"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)

		os.Exit(1)
	}

	service, err := bootstrap.InitService(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize sequencer service: %v\n", err)

		os.Exit(1)
	}

	service.Run()
}
