package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"handspeak/core"
)

const keyPrefix = "history:"

// BadgerOptions configures the on-disk store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string
	// InMemory runs BadgerDB without disk persistence. Useful for tests.
	InMemory bool
	Logger   *core.Logger
}

// BadgerStore keeps one msgpack-encoded entry list per device.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.GetLogger()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger.With(map[string]any{"component": "badger"})})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("history: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load(_ context.Context, deviceID string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deviceKey(deviceID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &entries)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: load %q: %w", deviceID, err)
	}
	return entries, nil
}

func (s *BadgerStore) Save(_ context.Context, deviceID string, entries []Entry) error {
	data, err := msgpack.Marshal(entries)
	if err != nil {
		return fmt.Errorf("history: encode %q: %w", deviceID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deviceKey(deviceID), data)
	})
}

func (s *BadgerStore) Devices(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	return ids, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func deviceKey(deviceID string) []byte {
	return []byte(keyPrefix + deviceID)
}

// badgerLogger demotes badger's chatter to debug.
type badgerLogger struct{ l *core.Logger }

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
