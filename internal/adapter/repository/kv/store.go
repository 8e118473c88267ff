// Package kv stores loans, balances and the transfer journal in LevelDB.
// Write transactions are serialised by a store-wide mutex and buffered
// until they commit as one leveldb.Batch.
package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	loanKeyPrefix     = "loan/"
	balanceKeyPrefix  = "balance/"
	transferKeyPrefix = "transfer/"

	loanCounterKey     = "counter/loan_count"
	transferCounterKey = "counter/transfer_seq"
)

var errKeyNotFound = errors.New("kv: key not found")

type Store struct {
	db *leveldb.DB
	mu sync.Mutex
}

func NewStore(db *leveldb.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// update runs fn in a write transaction and commits its writes atomically.
func (s *Store) update(ctx context.Context, fn func(tx *txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &txn{db: s.db, pending: map[string][]byte{}}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// view returns a read-only handle on committed data.
func (s *Store) view() *txn { return &txn{db: s.db} }

type txn struct {
	db      *leveldb.DB
	pending map[string][]byte
}

func (t *txn) get(key string) ([]byte, error) {
	if v, ok := t.pending[key]; ok {
		return v, nil
	}
	v, err := t.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, nil
}

func (t *txn) put(key string, v []byte) error {
	if t.pending == nil {
		return errors.New("kv: write outside transaction")
	}
	t.pending[key] = v
	return nil
}

type entry struct {
	key   string
	value []byte
}

// scan returns committed and pending entries under prefix in key order.
func (t *txn) scan(ctx context.Context, prefix string) ([]entry, error) {
	merged := map[string][]byte{}
	iter := t.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			iter.Release()
			return nil, err
		}
		merged[string(iter.Key())] = append([]byte(nil), iter.Value()...)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("kv scan %s: %w", prefix, err)
	}
	for k, v := range t.pending {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}

	out := make([]entry, 0, len(merged))
	for k, v := range merged {
		out = append(out, entry{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}

func (t *txn) commit() error {
	if len(t.pending) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for k, v := range t.pending {
		batch.Put([]byte(k), v)
	}
	if err := t.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("kv commit: %w", err)
	}
	return nil
}

// next reads the counter at key, stores counter+1 and returns the read value.
func (t *txn) next(key string) (uint64, error) {
	var cur uint64
	v, err := t.get(key)
	switch {
	case errors.Is(err, errKeyNotFound):
	case err != nil:
		return 0, err
	case len(v) != 8:
		return 0, fmt.Errorf("kv: corrupt counter %s", key)
	default:
		cur = binary.BigEndian.Uint64(v)
	}
	if err := t.put(key, encodeUint64(cur+1)); err != nil {
		return 0, err
	}
	return cur, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func loanKey(loanID uint64) string { return fmt.Sprintf("%s%020d", loanKeyPrefix, loanID) }

func balanceKey(asset, account string) string {
	return balanceKeyPrefix + asset + "/" + account
}

func transferLoanPrefix(loanID *uint64) string {
	if loanID == nil {
		return transferKeyPrefix + "none/"
	}
	return fmt.Sprintf("%s%020d/", transferKeyPrefix, *loanID)
}
