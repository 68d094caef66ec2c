package cli

import (
	"fmt"
	"strings"

	"github.com/jonwraymond/modmemo/checkpoint"
	"github.com/jonwraymond/modmemo/checkpoint/badgerstore"
	"github.com/jonwraymond/modmemo/checkpoint/sqlitestore"
	"github.com/jonwraymond/modmemo/observe"
)

// openStore opens the store named by uri: file:DIR, badger:DIR or
// sqlite:PATH. A uri without a scheme is a file store directory.
func openStore(uri string, logger observe.Logger) (checkpoint.Store, error) {
	scheme, path, ok := strings.Cut(uri, ":")
	if !ok {
		scheme, path = "file", uri
	}
	if path == "" {
		return nil, fmt.Errorf("store %q: path is required", uri)
	}
	switch scheme {
	case "file":
		return checkpoint.NewFileStore(path)
	case "badger":
		cfg := badgerstore.DefaultConfig(path)
		cfg.Logger = observe.Slog(logger)
		// The tool is short-lived; value log GC would never run.
		cfg.GCInterval = 0
		return badgerstore.Open(cfg)
	case "sqlite":
		return sqlitestore.Open(path)
	default:
		return nil, fmt.Errorf("store %q: unknown scheme %q", uri, scheme)
	}
}

func (a *app) open() (checkpoint.Store, error) {
	return openStore(a.storeURI, a.logger)
}
