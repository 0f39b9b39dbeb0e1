// Command roomchat-sim runs the in-repo room server for local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okitsu/roomchat/internal/simulator"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	srv := simulator.New(*addr, log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Error("server stopped", "error", err)
	}
}
