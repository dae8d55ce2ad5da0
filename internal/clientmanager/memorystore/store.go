// Package memorystore is a single-process AddressRepository used for tests
// and standalone deployments. Closed records are indexed in a treemap
// ordered by version, so expiry scans walk oldest-first without touching
// the whole directory.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/emirpasic/gods/maps/treemap"

	"github.com/struggle121224/sofa-registry/internal/clientmanager"
)

type offKey struct {
	version int64
	address string
}

func offKeyComparator(a, b interface{}) int {
	ka, kb := a.(offKey), b.(offKey)
	switch {
	case ka.version < kb.version:
		return -1
	case ka.version > kb.version:
		return 1
	case ka.address < kb.address:
		return -1
	case ka.address > kb.address:
		return 1
	default:
		return 0
	}
}

// Store keeps the address directory in memory.
type Store struct {
	clk clock.Clock

	mu        sync.Mutex
	addresses map[string]clientmanager.AddressVersion
	offIndex  *treemap.Map // offKey -> address, closed records only
	version   int64        // directory version, 0 until first write
}

func New() *Store {
	return NewWithClock(clock.New())
}

func NewWithClock(clk clock.Clock) *Store {
	return &Store{
		clk:       clk,
		addresses: make(map[string]clientmanager.AddressVersion),
		offIndex:  treemap.NewWith(offKeyComparator),
	}
}

func (s *Store) ClientOpen(ctx context.Context, addrs []clientmanager.AddressVersion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, av := range addrs {
		av.Open = true
		s.put(av)
	}
	return true, nil
}

func (s *Store) ClientOff(ctx context.Context, addrs []clientmanager.AddressVersion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, av := range addrs {
		av.Open = false
		s.put(av)
	}
	return true, nil
}

// put applies one record under the lock. Records carrying a version are
// applied only if they advance the existing one; unversioned records get a
// fresh monotonic stamp.
func (s *Store) put(av clientmanager.AddressVersion) {
	cur, exists := s.addresses[av.Address]
	if av.Version == 0 {
		av.Version = s.nextVersion()
	} else if exists && av.Version <= cur.Version {
		return // stale write, absorbed
	} else if av.Version > s.version {
		s.version = av.Version
	}
	if exists && !cur.Open {
		s.offIndex.Remove(offKey{version: cur.Version, address: cur.Address})
	}
	s.addresses[av.Address] = av
	if !av.Open {
		s.offIndex.Put(offKey{version: av.Version, address: av.Address}, av.Address)
	}
}

func (s *Store) nextVersion() int64 {
	v := s.clk.Now().UnixMilli()
	if v <= s.version {
		v = s.version + 1
	}
	s.version = v
	return v
}

func (s *Store) Reduce(ctx context.Context, addrs []clientmanager.AddressVersion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, av := range addrs {
		s.remove(av.Address)
	}
	s.nextVersion()
	return true, nil
}

func (s *Store) remove(address string) {
	cur, exists := s.addresses[address]
	if !exists {
		return
	}
	if !cur.Open {
		s.offIndex.Remove(offKey{version: cur.Version, address: cur.Address})
	}
	delete(s.addresses, address)
}

func (s *Store) QueryClientOffData(ctx context.Context) (clientmanager.ClientManagerAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := make(map[string]clientmanager.AddressVersion)
	for addr, av := range s.addresses {
		if !av.Open {
			off[addr] = av
		}
	}
	return clientmanager.ClientManagerAddress{
		Version:          s.version,
		ClientOffAddress: off,
	}, nil
}

func (s *Store) GetExpireAddress(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoffMs := cutoff.UnixMilli()
	var out []string
	it := s.offIndex.Iterator()
	for it.Next() {
		if it.Key().(offKey).version > cutoffMs {
			break
		}
		out = append(out, it.Value().(string))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CleanExpired(ctx context.Context, addrs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, addr := range addrs {
		cur, exists := s.addresses[addr]
		if !exists || cur.Open {
			continue
		}
		s.offIndex.Remove(offKey{version: cur.Version, address: cur.Address})
		delete(s.addresses, addr)
		count++
	}
	return count, nil
}

func (s *Store) GetClientOffSizeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoffMs := cutoff.UnixMilli()
	count := 0
	it := s.offIndex.Iterator()
	for it.Next() {
		if it.Key().(offKey).version > cutoffMs {
			break
		}
		count++
	}
	return count, nil
}

// WaitSynced is immediate: the in-memory store is its own replication
// source.
func (s *Store) WaitSynced(ctx context.Context) error {
	return nil
}
