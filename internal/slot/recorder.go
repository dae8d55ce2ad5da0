package slot

import "sync/atomic"

// Recorder receives slot tables computed outside the renewal path, so the
// next heartbeat can carry the node's latest known assignment without the
// renewal loop blocking on that computation.
type Recorder interface {
	Record(t Table)
}

// SnapshotRecorder keeps the last recorded table as an atomically swapped
// snapshot. Last writer wins; there is no history.
type SnapshotRecorder struct {
	table atomic.Pointer[Table]
}

func NewSnapshotRecorder() *SnapshotRecorder {
	return &SnapshotRecorder{}
}

// Record stores a defensive copy of t as the outbound snapshot.
func (r *SnapshotRecorder) Record(t Table) {
	c := t.Copy()
	r.table.Store(&c)
}

// Snapshot returns a copy of the last recorded table, or false when nothing
// has been recorded yet. A Record racing with Snapshot yields a complete
// table either way, old or new.
func (r *SnapshotRecorder) Snapshot() (Table, bool) {
	t := r.table.Load()
	if t == nil {
		return Table{}, false
	}
	return t.Copy(), true
}
