package main

import (
	"flag"
	"fmt"
	"os"

	"livechat/internal/app"
)

func main() {
	cfg, err := app.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	endpoint := flag.String("endpoint", cfg.Endpoint, "server base URL (e.g. http://localhost:8080)")
	name := flag.String("name", cfg.DisplayName, "display name attached to sent messages")
	user := flag.String("user", cfg.UserID, "stable user id (generated when empty)")
	flag.Parse()

	cfg.Endpoint = *endpoint
	cfg.DisplayName = *name
	cfg.UserID = *user
	if args := flag.Args(); len(args) >= 1 {
		cfg.Room = args[0]
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
