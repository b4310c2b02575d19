package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"livechat/internal/app"
)

const (
	modeServer = "server"
	modeClient = "client"
	modeLocal  = "local"
)

func main() {
	mode, args := parseMode(os.Args[1:])

	serverCfg, err := app.LoadServerConfig()
	if err != nil {
		fatalf("config: %v", err)
	}
	clientCfg, err := app.LoadClientConfig()
	if err != nil {
		fatalf("config: %v", err)
	}
	if mode == modeLocal {
		serverCfg.Addr = "127.0.0.1:0"
	}

	flagSet := flag.NewFlagSet("livechat", flag.ExitOnError)
	addr := flagSet.String("addr", serverCfg.Addr, "server listen address")
	endpoint := flagSet.String("endpoint", clientCfg.Endpoint, "server base URL (client mode)")
	name := flagSet.String("name", clientCfg.DisplayName, "display name attached to sent messages")
	user := flagSet.String("user", clientCfg.UserID, "stable user id (generated when empty)")
	db := flagSet.String("db", clientCfg.DBPath, "sqlite path for the local identity/room registries")
	_ = flagSet.Parse(args)

	serverCfg.Addr = *addr
	clientCfg.Endpoint = *endpoint
	clientCfg.DisplayName = *name
	clientCfg.UserID = *user
	clientCfg.DBPath = *db
	if remaining := flagSet.Args(); len(remaining) > 0 {
		clientCfg.Room = remaining[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case modeServer:
		err = runServerMode(ctx, serverCfg)
	case modeLocal:
		err = runLocalMode(ctx, serverCfg, clientCfg)
	default:
		err = app.RunClient(clientCfg)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fatalf("%v", err)
	}
}

func runServerMode(ctx context.Context, cfg app.ServerConfig) error {
	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("livechat server listening on %s\n", handle.Addr())
	return handle.Wait()
}

// runLocalMode starts an in-process server and points the client at it.
func runLocalMode(ctx context.Context, serverCfg app.ServerConfig, clientCfg app.ClientConfig) error {
	handle, err := app.RunServer(ctx, serverCfg)
	if err != nil {
		return err
	}
	defer stopServer(handle)

	if err := waitForServer(handle.Addr(), 5*time.Second); err != nil {
		return err
	}

	clientCfg.Endpoint = "http://" + handle.Addr()
	if err := app.RunClient(clientCfg); err != nil {
		return err
	}
	stopServer(handle)
	return handle.Wait()
}

func waitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server did not become ready: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func parseMode(args []string) (string, []string) {
	if len(args) == 0 {
		return modeClient, args
	}
	switch strings.ToLower(args[0]) {
	case modeServer, modeClient, modeLocal:
		return strings.ToLower(args[0]), args[1:]
	}
	return modeClient, args
}

func stopServer(handle *app.ServerHandle) {
	if handle == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = handle.Stop(shutdownCtx)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "livechat: "+format+"\n", args...)
	os.Exit(1)
}
