// Package scanlog records completed scans in BadgerDB.
//
// A scan is stored msgpack-encoded under "scan:<id>". A second key,
// "time:<unix_ns>:<id>", orders scans by creation time so the most recent
// ones can be listed with a reverse prefix scan. Both keys are written in
// one transaction.
//
// Records carry no user identity.
package scanlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/deepscan/pkg/classify"
)

// MediaType is the kind of media submitted for a scan.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ParseMediaType validates s as a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch m := MediaType(s); m {
	case MediaAudio, MediaImage, MediaVideo:
		return m, nil
	}
	return "", fmt.Errorf("scanlog: unknown media type %q", s)
}

// Status is the outcome of a scan.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusUnsupported Status = "unsupported"
)

// Scan is one detection request and its result.
type Scan struct {
	ID        string            `json:"id" msgpack:"id"`
	MediaType MediaType         `json:"media_type" msgpack:"media_type"`
	Source    string            `json:"source" msgpack:"source"` // original filename or URL
	MediaKey  string            `json:"media_key,omitempty" msgpack:"media_key,omitempty"`
	Status    Status            `json:"status" msgpack:"status"`
	Verdict   *classify.Verdict `json:"verdict,omitempty" msgpack:"verdict,omitempty"`
	Error     string            `json:"error,omitempty" msgpack:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
}

// ErrNotFound is returned by Get for unknown scan IDs.
var ErrNotFound = errors.New("scanlog: scan not found")

// Options configures Open.
type Options struct {
	// Dir is the BadgerDB directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory; nothing survives Close.
	InMemory bool

	// Logger receives BadgerDB warnings and errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// Log is a persistent scan log. It is safe for concurrent use.
type Log struct {
	db *badger.DB
}

// Open opens or creates a scan log.
func Open(opts Options) (*Log, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("scanlog: Options.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("scanlog: open: %w", err)
	}
	return &Log{db: db}, nil
}

func scanKey(id string) []byte {
	return []byte("scan:" + id)
}

func timeKey(t time.Time, id string) []byte {
	return fmt.Appendf(nil, "time:%020d:%s", t.UnixNano(), id)
}

// timePrefix is the common prefix of all time index keys.
var timePrefix = []byte("time:")

// Put stores s. An empty ID is filled with a new UUID and a zero CreatedAt
// with the current time. Storing a scan with an existing ID replaces it.
func (l *Log) Put(_ context.Context, s *Scan) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("scanlog: encode %s: %w", s.ID, err)
	}

	return l.db.Update(func(txn *badger.Txn) error {
		old, err := getScan(txn, s.ID)
		switch {
		case err == nil:
			if !old.CreatedAt.Equal(s.CreatedAt) {
				if err := txn.Delete(timeKey(old.CreatedAt, old.ID)); err != nil {
					return err
				}
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if err := txn.Set(scanKey(s.ID), data); err != nil {
			return err
		}
		return txn.Set(timeKey(s.CreatedAt, s.ID), []byte(s.ID))
	})
}

// Get returns the scan with the given ID.
func (l *Log) Get(_ context.Context, id string) (*Scan, error) {
	var s *Scan
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getScan(txn, id)
		return err
	})
	return s, err
}

// Recent returns up to limit scans, newest first.
func (l *Log) Recent(_ context.Context, limit int) ([]*Scan, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []*Scan
	err := l.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.Prefix = timePrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key.
		seek := append(append([]byte{}, timePrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(timePrefix) && len(out) < limit; it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			s, err := getScan(txn, string(id))
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// Close flushes and closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

func getScan(txn *badger.Txn, id string) (*Scan, error) {
	item, err := txn.Get(scanKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Scan
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &s)
	})
	if err != nil {
		return nil, fmt.Errorf("scanlog: decode %s: %w", id, err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// badgerLogger routes BadgerDB logs to slog, dropping info and debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn(fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...interface{})          {}
func (badgerLogger) Debugf(string, ...interface{})         {}
