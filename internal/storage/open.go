package storage

import (
	"fmt"
	"io"
	"path/filepath"

	"tilestream/internal/world"
)

// Backend is a closable persistence adapter.
type Backend interface {
	world.Persistence
	io.Closer
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Dir        string // world folder for the file backend
	Ext        string
	Compress   bool
	SQLitePath string // defaults to <Dir>/world.db
}

// Open builds the backend named in opts.
func Open(opts Options, codec Codec) (Backend, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Dir, FileOptions{Ext: opts.Ext, Compress: opts.Compress}, codec)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.Dir, "world.db")
		}
		return OpenSQLite(path, codec)
	case BackendMemory:
		return NewMemoryStore(codec), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
