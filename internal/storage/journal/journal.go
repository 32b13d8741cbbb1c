// Package journal appends transaction records to a write-ahead log for audit and streaming.
// The log is never replayed into ledgers.
package journal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultDir   = "./wal/transactions"
	segmentLimit = 100
	maxSegments  = 10

	keyPrefix = "tx_"
)

// Record is a journal entry with its WAL index.
type Record struct {
	Index       uint64             `json:"index"`
	Transaction domain.Transaction `json:"transaction"`
}

// Store persists transactions in a WAL.
type Store struct {
	wal *gowal.Wal
	l   *zap.Logger
	mu  sync.RWMutex
}

// Open initializes a WAL-backed journal in dir.
func Open(l *zap.Logger, dir string) (*Store, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init transaction WAL")
	}

	return &Store{wal: wal, l: l}, nil
}

// Append writes tx as the next WAL entry and returns its index.
func (s *Store) Append(tx domain.Transaction) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("journal is not initialized")
	}
	if tx.Strategy == "" {
		return 0, errors.New("transaction strategy is required")
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return 0, errors.Wrap(err, "marshal transaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(next, keyPrefix+tx.Strategy, payload); err != nil {
		return 0, errors.Wrapf(err, "write transaction %s", tx.ID)
	}
	return next, nil
}

// Publish implements events.Sink. Write failures are logged, never returned to the trading path.
func (s *Store) Publish(tx domain.Transaction) {
	if _, err := s.Append(tx); err != nil {
		s.l.Error("failed to journal transaction", zap.String("id", tx.ID), zap.Error(err))
	}
}

// RecordsAfter returns the transactions written after index, in order.
func (s *Store) RecordsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, keyPrefix) {
			continue
		}

		var tx domain.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			return nil, errors.Wrapf(err, "decode transaction at %d", idx)
		}
		records = append(records, Record{Index: idx, Transaction: tx})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *Store) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
