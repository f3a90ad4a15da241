// Package store provides the ordered key-value "value box" the index
// tables are built on: byte-string keys partitioned into tables, with
// get/set/remove and directional bounded range scans. The production
// implementation is backed by Pebble.
package store

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"messagebox/pkg/logger"
	"messagebox/pkg/telemetry"
)

// Table identifies a logical key space within the box. The table id is a
// single byte prefixed to every physical key, so no two tables can ever
// overlap key ranges.
type Table uint8

const (
	// TableMedia holds media dedup rows keyed by MediaId.
	TableMedia Table = 0x01
	// TableChatListIndex holds chat-list message and hole rows.
	TableChatListIndex Table = 0x02
)

// KV is the ordered key-value contract consumed by the index tables.
//
// Range walks keys strictly between start and end, ascending when
// start < end lexicographically and descending when start > end, calling
// visit per entry until visit returns false or limit entries have been
// visited (limit <= 0 means no limit). Both bounds are exclusive; callers
// steer inclusivity with boundary keys that sort just outside the rows
// they want.
type KV interface {
	Get(t Table, key []byte) ([]byte, bool, error)
	Set(t Table, key, value []byte) error
	Remove(t Table, key []byte) error
	Range(t Table, start, end []byte, visit func(key, value []byte) bool, limit int) error
}

// Store is the Pebble-backed KV implementation.
type Store struct {
	db   *pebble.DB
	path string
}

var _ KV = (*Store)(nil)

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, errors.Wrapf(err, "open pebble db at %s", path)
	}
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Log.Info("pebble_closed", zap.String("path", s.path))
	return nil
}

func tableKey(t Table, key []byte) []byte {
	k := make([]byte, 0, 1+len(key))
	k = append(k, byte(t))
	return append(k, key...)
}

// Get returns the value stored at key, or found == false if absent.
func (s *Store) Get(t Table, key []byte) ([]byte, bool, error) {
	v, closer, err := s.db.Get(tableKey(t, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, true, nil
}

// Set writes key to value.
func (s *Store) Set(t Table, key, value []byte) error {
	if err := s.db.Set(tableKey(t, key), value, pebble.Sync); err != nil {
		logger.Log.Error("store_set_failed", zap.Uint8("table", uint8(t)), zap.Error(err))
		return err
	}
	telemetry.StoreSets.Inc()
	return nil
}

// Remove deletes key if present.
func (s *Store) Remove(t Table, key []byte) error {
	if err := s.db.Delete(tableKey(t, key), pebble.Sync); err != nil {
		logger.Log.Error("store_remove_failed", zap.Uint8("table", uint8(t)), zap.Error(err))
		return err
	}
	telemetry.StoreRemoves.Inc()
	return nil
}

// exclusiveLower returns the smallest physical key strictly greater than
// the given table-scoped bound. An empty bound admits the whole table.
func exclusiveLower(t Table, bound []byte) []byte {
	k := tableKey(t, bound)
	if len(bound) == 0 {
		return k
	}
	return append(k, 0x00)
}

// Range implements the directional scan described on KV.
func (s *Store) Range(t Table, start, end []byte, visit func(key, value []byte) bool, limit int) error {
	cmp := bytes.Compare(start, end)
	if cmp == 0 {
		return nil
	}
	descending := cmp > 0
	var opts pebble.IterOptions
	if descending {
		opts.LowerBound = exclusiveLower(t, end)
		opts.UpperBound = tableKey(t, start)
	} else {
		opts.LowerBound = exclusiveLower(t, start)
		opts.UpperBound = tableKey(t, end)
	}
	iter, err := s.db.NewIter(&opts)
	if err != nil {
		return err
	}
	defer iter.Close()

	count := 0
	var valid bool
	if descending {
		valid = iter.Last()
	} else {
		valid = iter.First()
	}
	for ; valid; valid = s.advance(iter, descending) {
		key := append([]byte(nil), iter.Key()[1:]...)
		value := append([]byte(nil), iter.Value()...)
		telemetry.StoreRangeRows.Inc()
		if !visit(key, value) {
			break
		}
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return iter.Error()
}

func (s *Store) advance(iter *pebble.Iterator, descending bool) bool {
	if descending {
		return iter.Prev()
	}
	return iter.Next()
}
