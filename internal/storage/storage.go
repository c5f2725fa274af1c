package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes.
const (
	prefixGame   = "game:"
	prefixRating = "rating:"
	keyGameSeq   = "seq:games"
)

// DefaultRating is the rating assigned to engines never seen before.
const DefaultRating = 1500.0

// GameRecord is one completed self-play game.
type GameRecord struct {
	White       string    `json:"white"`
	Black       string    `json:"black"`
	Result      string    `json:"result"` // "1-0", "0-1", "1/2-1/2"
	Termination string    `json:"termination"`
	Moves       []string  `json:"moves"` // SAN
	Plies       int       `json:"plies"`
	PlayedAt    time.Time `json:"played_at"`
}

// Store wraps BadgerDB for persistent match data.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens the store in the default database directory.
func Open() (*Store, error) {
	dir, err := DatabaseDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dir)
}

// OpenAt opens the store at the given directory.
func OpenAt(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	seq, err := db.GetSequence([]byte(keyGameSeq), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open game sequence: %w", err)
	}

	return &Store{db: db, seq: seq}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.seq != nil {
		s.seq.Release()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordGame appends a completed game.
func (s *Store) RecordGame(record GameRecord) error {
	if record.PlayedAt.IsZero() {
		record.PlayedAt = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	id, err := s.seq.Next()
	if err != nil {
		return err
	}

	key := make([]byte, len(prefixGame)+8)
	copy(key, prefixGame)
	binary.BigEndian.PutUint64(key[len(prefixGame):], id)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Games returns all recorded games in insertion order.
func (s *Store) Games() ([]GameRecord, error) {
	var games []GameRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixGame)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record GameRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				games = append(games, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return games, err
}

// SaveRating stores an engine's rating.
func (s *Store) SaveRating(name string, rating float64) error {
	data, err := json.Marshal(rating)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixRating+name), data)
	})
}

// LoadRating returns an engine's rating, or DefaultRating if unknown.
func (s *Store) LoadRating(name string) (float64, error) {
	rating := DefaultRating

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRating + name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rating)
		})
	})

	return rating, err
}
