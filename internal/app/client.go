package app

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"livechat/internal/storage"
	"livechat/internal/tui"
)

// RunClient launches the Bubble Tea TUI with the provided configuration.
// The local registries are best effort: if the SQLite store cannot be
// opened the client still runs, just without saved identities and rooms.
func RunClient(cfg ClientConfig) error {
	if cfg.Endpoint == "" {
		return errors.New("server endpoint is required")
	}

	store := openStore(cfg.DBPath)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	model := tui.New(cfg.Endpoint, store, cfg.Room, cfg.UserID, cfg.DisplayName)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func openStore(path string) *storage.Store {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Printf("create data dir: %v", err)
		return nil
	}
	store, err := storage.NewStore(path)
	if err != nil {
		log.Printf("open store: %v", err)
		return nil
	}
	if err := store.Migrate(context.Background()); err != nil {
		log.Printf("migrate store: %v", err)
		_ = store.Close()
		return nil
	}
	return store
}
