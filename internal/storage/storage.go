package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no analysis is stored for a position.
var ErrNotFound = errors.New("analysis not found")

const keyPrefix = "analysis/"

// Analysis is a finished search stored for later reuse. Moves are kept in
// coordinate notation so records do not depend on the in-memory encoding.
type Analysis struct {
	FEN      string        `json:"fen"`
	Move     string        `json:"move"`
	Ponder   string        `json:"ponder,omitempty"`
	Score    int           `json:"score"`
	Depth    int           `json:"depth"`
	Nodes    uint64        `json:"nodes"`
	PV       []string      `json:"pv"`
	Elapsed  time.Duration `json:"elapsed"`
	Searched time.Time     `json:"searched"`
}

// Store wraps BadgerDB. Values are zstd-compressed JSON keyed by the
// position hash.
type Store struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens or creates a store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory creates a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		encoder.Close()
		decoder.Close()
		return nil, fmt.Errorf("open analysis store: %w", err)
	}
	log.Debug().Str("dir", opts.Dir).Bool("memory", opts.InMemory).Msg("analysis store opened")
	return &Store{db: db, encoder: encoder, decoder: decoder}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.encoder.Close()
	s.decoder.Close()
	s.db = nil
	return err
}

func key(hash uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(keyPrefix), hash)
}

// samePosition compares FENs without the move counters, so transpositions
// reached at different move numbers match.
func samePosition(a, b string) bool {
	fa, fb := strings.Fields(a), strings.Fields(b)
	if len(fa) < 4 || len(fb) < 4 {
		return a == b
	}
	for i := range 4 {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}

// Get returns the analysis stored under hash for the position fen. A
// record for a different position sharing the hash counts as not found.
func (s *Store) Get(hash uint64, fen string) (Analysis, error) {
	var a Analysis
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return s.decode(val, &a)
		})
	})
	if err != nil {
		return Analysis{}, err
	}
	if !samePosition(a.FEN, fen) {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// Put stores a under hash unless a deeper analysis of the same position is
// already there. It reports whether the record was written.
func (s *Store) Put(hash uint64, a Analysis) (bool, error) {
	if a.Searched.IsZero() {
		a.Searched = time.Now()
	}
	data, err := s.encode(a)
	if err != nil {
		return false, err
	}

	written := false
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(hash))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var old Analysis
			if err := item.Value(func(val []byte) error { return s.decode(val, &old) }); err != nil {
				return err
			}
			if samePosition(old.FEN, a.FEN) && old.Depth > a.Depth {
				return nil
			}
		}
		written = true
		return txn.Set(key(hash), data)
	})
	return written, err
}

// Delete removes the analysis stored under hash, if any.
func (s *Store) Delete(hash uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(hash))
	})
}

// Count returns the number of stored analyses.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) encode(a Analysis) ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return s.encoder.EncodeAll(raw, nil), nil
}

func (s *Store) decode(val []byte, a *Analysis) error {
	raw, err := s.decoder.DecodeAll(val, nil)
	if err != nil {
		return fmt.Errorf("decompress analysis: %w", err)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("decode analysis: %w", err)
	}
	return nil
}
