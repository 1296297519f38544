package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectdiscovery/gologger"

	"github.com/projectdiscovery/edgeprobe/internal/runner"
)

func main() {
	options := runner.ParseOptions()
	edgeprobeRunner, err := runner.NewRunner(options)
	if err != nil {
		gologger.Fatal().Msgf("Could not create runner: %s\n", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup close handler
	go func() {
		<-c
		fmt.Println("\r- Ctrl+C pressed in Terminal, finishing current batch...")
		edgeprobeRunner.Close()
		cancel()
	}()

	err = edgeprobeRunner.Run(ctx)
	if err != nil {
		gologger.Fatal().Msgf("Could not run edgeprobe: %s\n", err)
	}
}
