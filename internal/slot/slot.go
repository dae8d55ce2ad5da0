package slot

import "sort"

// InitEpoch marks a table that has never been assigned by the meta tier.
// A response carrying it means "no update available", not "empty table".
const InitEpoch = -1

// Role is the part a node plays for one slot.
type Role string

const (
	RoleLeader   Role = "Leader"
	RoleFollower Role = "Follower"
)

// Slot is the assignment record for a single partition of the keyspace.
type Slot struct {
	ID          int      `json:"id"`
	Leader      string   `json:"leader"`
	LeaderEpoch int64    `json:"leaderEpoch"`
	Followers   []string `json:"followers,omitempty"`
}

func (s Slot) copy() Slot {
	c := s
	if s.Followers != nil {
		c.Followers = make([]string, len(s.Followers))
		copy(c.Followers, s.Followers)
	}
	return c
}

// Table is an epoch-versioned slot assignment table. Tables are treated as
// immutable values: a newer table replaces an older one by whole-value swap,
// never by in-place mutation.
type Table struct {
	Epoch int64        `json:"epoch"`
	Slots map[int]Slot `json:"slots,omitempty"`
}

// InitTable is the uninitialized sentinel delivered before the meta tier has
// computed any assignment.
func InitTable() Table {
	return Table{Epoch: InitEpoch}
}

// Copy returns a deep copy so callers can hold the result across concurrent
// swaps.
func (t Table) Copy() Table {
	c := Table{Epoch: t.Epoch}
	if t.Slots != nil {
		c.Slots = make(map[int]Slot, len(t.Slots))
		for id, s := range t.Slots {
			c.Slots[id] = s.copy()
		}
	}
	return c
}

// Status is the per-slot state a node reports in its heartbeat.
type Status struct {
	SlotID      int    `json:"slotId"`
	Role        Role   `json:"role"`
	LeaderEpoch int64  `json:"leaderEpoch"`
	Server      string `json:"server"`
}

// StatusesFor derives the statuses node would report for t, one entry per
// slot the node leads or follows, ordered by slot ID.
func (t Table) StatusesFor(node string) []Status {
	var statuses []Status
	for id, s := range t.Slots {
		switch {
		case s.Leader == node:
			statuses = append(statuses, Status{
				SlotID:      id,
				Role:        RoleLeader,
				LeaderEpoch: s.LeaderEpoch,
				Server:      node,
			})
		case contains(s.Followers, node):
			statuses = append(statuses, Status{
				SlotID:      id,
				Role:        RoleFollower,
				LeaderEpoch: s.LeaderEpoch,
				Server:      node,
			})
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].SlotID < statuses[j].SlotID })
	return statuses
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
