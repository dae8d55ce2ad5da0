// Package badgerstore is the durable AddressRepository used by the meta
// tier. Records live under an address prefix as gob values; the directory
// version is a separate key so queries can tell "never written" from
// "empty".
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"

	"github.com/struggle121224/sofa-registry/internal/clientmanager"
)

const (
	addrPrefix = "addr/"
	versionKey = "sys/clientManagerVersion"
)

// Store implements clientmanager.AddressRepository on BadgerDB.
type Store struct {
	db  *badger.DB
	clk clock.Clock
}

// New opens the store at path.
func New(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, clk: clock.New()}, nil
}

// NewInMemory opens a non-durable store, used in tests.
func NewInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, clk: clock.New()}, nil
}

// SetClock overrides the version-stamp clock, used in tests.
func (s *Store) SetClock(clk clock.Clock) { s.clk = clk }

func (s *Store) Close() error {
	return s.db.Close()
}

func addrKey(address string) []byte {
	return []byte(addrPrefix + address)
}

func decodeRecord(item *badger.Item, av *clientmanager.AddressVersion) error {
	return item.Value(func(val []byte) error {
		return gob.NewDecoder(bytes.NewReader(val)).Decode(av)
	})
}

func encodeRecord(av clientmanager.AddressVersion) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(av); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) ClientOpen(ctx context.Context, addrs []clientmanager.AddressVersion) (bool, error) {
	return s.write(addrs, true)
}

func (s *Store) ClientOff(ctx context.Context, addrs []clientmanager.AddressVersion) (bool, error) {
	return s.write(addrs, false)
}

// write applies the batch in one transaction. Unversioned records get a
// fresh monotonic stamp; versioned records must advance the stored one or
// they are silently absorbed.
func (s *Store) write(addrs []clientmanager.AddressVersion, open bool) (bool, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		dirVersion, err := readVersion(txn)
		if err != nil {
			return err
		}
		stamp := s.clk.Now().UnixMilli()
		if stamp <= dirVersion {
			stamp = dirVersion + 1
		}
		next := dirVersion
		for _, av := range addrs {
			av.Open = open
			cur, exists, err := readRecord(txn, av.Address)
			if err != nil {
				return err
			}
			if av.Version == 0 {
				av.Version = stamp
			} else if exists && av.Version <= cur.Version {
				continue
			}
			if av.Version > next {
				next = av.Version
			}
			val, err := encodeRecord(av)
			if err != nil {
				return err
			}
			if err := txn.Set(addrKey(av.Address), val); err != nil {
				return err
			}
		}
		if next != dirVersion {
			return writeVersion(txn, next)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Reduce(ctx context.Context, addrs []clientmanager.AddressVersion) (bool, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, av := range addrs {
			if err := txn.Delete(addrKey(av.Address)); err != nil {
				return err
			}
		}
		dirVersion, err := readVersion(txn)
		if err != nil {
			return err
		}
		stamp := s.clk.Now().UnixMilli()
		if stamp <= dirVersion {
			stamp = dirVersion + 1
		}
		return writeVersion(txn, stamp)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) QueryClientOffData(ctx context.Context) (clientmanager.ClientManagerAddress, error) {
	out := clientmanager.ClientManagerAddress{
		ClientOffAddress: make(map[string]clientmanager.AddressVersion),
	}
	err := s.db.View(func(txn *badger.Txn) error {
		dirVersion, err := readVersion(txn)
		if err != nil {
			return err
		}
		out.Version = dirVersion

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(addrPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var av clientmanager.AddressVersion
			if err := decodeRecord(it.Item(), &av); err != nil {
				return err
			}
			if !av.Open {
				out.ClientOffAddress[av.Address] = av
			}
		}
		return nil
	})
	if err != nil {
		return clientmanager.ClientManagerAddress{}, err
	}
	return out, nil
}

func (s *Store) GetExpireAddress(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	type aged struct {
		address string
		version int64
	}
	var expired []aged
	cutoffMs := cutoff.UnixMilli()

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(addrPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var av clientmanager.AddressVersion
			if err := decodeRecord(it.Item(), &av); err != nil {
				return err
			}
			if !av.Open && av.Version <= cutoffMs {
				expired = append(expired, aged{address: av.Address, version: av.Version})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].version < expired[j].version })
	if len(expired) > limit {
		expired = expired[:limit]
	}
	out := make([]string, len(expired))
	for i, e := range expired {
		out[i] = e.address
	}
	return out, nil
}

func (s *Store) CleanExpired(ctx context.Context, addrs []string) (int, error) {
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, addr := range addrs {
			cur, exists, err := readRecord(txn, addr)
			if err != nil {
				return err
			}
			if !exists || cur.Open {
				continue
			}
			if err := txn.Delete(addrKey(addr)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) GetClientOffSizeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffMs := cutoff.UnixMilli()
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(addrPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var av clientmanager.AddressVersion
			if err := decodeRecord(it.Item(), &av); err != nil {
				return err
			}
			if !av.Open && av.Version <= cutoffMs {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// WaitSynced flushes pending writes to disk. The local store is its own
// replication source, so durability is the only thing to wait for.
func (s *Store) WaitSynced(ctx context.Context) error {
	if s.db.Opts().InMemory {
		return nil
	}
	return s.db.Sync()
}

func readRecord(txn *badger.Txn, address string) (clientmanager.AddressVersion, bool, error) {
	var av clientmanager.AddressVersion
	item, err := txn.Get(addrKey(address))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return av, false, nil
	}
	if err != nil {
		return av, false, err
	}
	if err := decodeRecord(item, &av); err != nil {
		return av, false, err
	}
	return av, true, nil
}

func readVersion(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(versionKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("bad version value length %d", len(val))
		}
		v = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return v, err
}

func writeVersion(txn *badger.Txn, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return txn.Set([]byte(versionKey), buf[:])
}
