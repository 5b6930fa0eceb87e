// Command graft is a CLI for inspecting and mutating a local graft store
// backed by Badger. It exists for development and operational poking; the
// production deployment talks to the DynamoDB backend directly.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jacentio/graft/access"
	"github.com/jacentio/graft/badgerstore"
	"github.com/jacentio/graft/store"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore opens the Badger-backed store at the --data path and returns
// the store, the access resolver, and a close function.
func openStore() (*store.Store, *access.Resolver, func(), error) {
	cfg := badgerstore.DefaultConfig(dataDir)
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	backend, err := badgerstore.Open(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store at %s: %w", dataDir, err)
	}

	s := store.New(backend, store.DefaultConfig())
	r := access.NewResolver(backend, backend, store.DefaultConfig(), cfg.Logger)

	closeFn := func() {
		if err := backend.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: close store:", err)
		}
	}
	return s, r, closeFn, nil
}
