package db

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// OpenLevelDB opens (creating if needed) a LevelDB directory.
func OpenLevelDB(path string) (*leveldb.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	ldb, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	slog.Info("leveldb: opened", "path", path)
	return ldb, nil
}

// OpenMemLevelDB is a LevelDB instance backed by memory storage.
func OpenMemLevelDB() (*leveldb.DB, error) {
	return leveldb.Open(storage.NewMemStorage(), nil)
}
