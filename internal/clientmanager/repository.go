package clientmanager

import (
	"context"
	"time"
)

// AddressRepository persists and replicates the client address directory.
// The repository owns version assignment and optimistic-conflict handling;
// the service layer above it only enforces the leader-only cleanup policy.
type AddressRepository interface {
	// ClientOpen marks the addresses traffic-enabled. Returns whether the
	// replicated write was accepted.
	ClientOpen(ctx context.Context, addrs []AddressVersion) (bool, error)

	// ClientOff marks the addresses traffic-disabled.
	ClientOff(ctx context.Context, addrs []AddressVersion) (bool, error)

	// Reduce removes the addresses from open/off tracking entirely.
	Reduce(ctx context.Context, addrs []AddressVersion) (bool, error)

	// QueryClientOffData returns the off-directory snapshot. Version 0
	// means the directory has never been written.
	QueryClientOffData(ctx context.Context) (ClientManagerAddress, error)

	// GetExpireAddress returns up to limit closed addresses whose off-state
	// predates cutoff.
	GetExpireAddress(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// CleanExpired deletes the given addresses, returning how many were
	// actually removed.
	CleanExpired(ctx context.Context, addrs []string) (int, error)

	// GetClientOffSizeBefore counts closed addresses older than cutoff.
	GetClientOffSizeBefore(ctx context.Context, cutoff time.Time) (int, error)

	// WaitSynced blocks until the local replica has caught up with its
	// replication source.
	WaitSynced(ctx context.Context) error
}

// LeadershipOracle reports whether the local process is currently the
// stable cluster leader. Only the stable leader runs destructive cleanup.
type LeadershipOracle interface {
	IsStableLeader() bool
}
