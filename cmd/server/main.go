package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"livechat/internal/app"
)

func main() {
	cfg, err := app.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	addr := flag.String("addr", cfg.Addr, "server listen address")
	flag.Parse()
	cfg.Addr = *addr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("livechat server listening on %s", handle.Addr())
	if err := handle.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
