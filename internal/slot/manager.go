package slot

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/struggle121224/sofa-registry/internal/metrics"
)

// Manager is the single in-process holder of the slot table this node
// currently believes. Reads are lock-free against an atomically published
// snapshot; writes are serialized and gated on the epoch so the view never
// regresses.
type Manager struct {
	node  string
	log   *zap.Logger
	mu    sync.Mutex // serializes writers
	table atomic.Pointer[Table]
}

// NewManager returns a manager holding the uninitialized sentinel table.
func NewManager(node string, log *zap.Logger) *Manager {
	m := &Manager{node: node, log: log.Named("slotManager")}
	init := InitTable()
	m.table.Store(&init)
	return m
}

// Epoch returns the epoch of the current table without blocking writers.
func (m *Manager) Epoch() int64 {
	return m.table.Load().Epoch
}

// Table returns a deep copy of the current table.
func (m *Manager) Table() Table {
	return m.table.Load().Copy()
}

// EpochAndStatuses returns the current epoch paired with the statuses this
// node would report for it. Both come from one snapshot, so the pair is
// never torn even while an update lands.
func (m *Manager) EpochAndStatuses() (int64, []Status) {
	t := m.table.Load()
	return t.Epoch, t.StatusesFor(m.node)
}

// UpdateSlotTable applies t iff its epoch is strictly greater than the
// current one. A stale or duplicate table is a silent no-op, which makes the
// apply idempotent under retried or reordered delivery. Returns whether the
// table was applied.
func (m *Manager) UpdateSlotTable(t Table) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.table.Load()
	if t.Epoch <= cur.Epoch {
		return false
	}
	next := t.Copy()
	m.table.Store(&next)
	metrics.SlotTableEpoch.Set(float64(next.Epoch))
	m.log.Info("slot table updated",
		zap.Int64("epoch", next.Epoch),
		zap.Int64("prevEpoch", cur.Epoch),
		zap.Int("slots", len(next.Slots)))
	return true
}
