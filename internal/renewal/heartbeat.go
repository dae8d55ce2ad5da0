package renewal

import (
	"github.com/struggle121224/sofa-registry/internal/slot"
)

// NodeKind is the tier a renewing node belongs to.
type NodeKind string

const (
	NodeKindData    NodeKind = "data"
	NodeKindSession NodeKind = "session"
)

// Node identifies the worker sending a heartbeat.
type Node struct {
	IP         string   `json:"ip"`
	Kind       NodeKind `json:"kind"`
	DataCenter string   `json:"dataCenter"`
}

// SlotBasicInfo is the static slot configuration a node reports, so the
// meta tier can reject nodes built with a mismatched partitioning scheme.
type SlotBasicInfo struct {
	SlotNum      int    `json:"slotNum"`
	SlotReplicas int    `json:"slotReplicas"`
	SlotFunc     string `json:"slotFunc"`
}

// DefaultSlotConfig mirrors the cluster-wide compiled-in slot scheme.
func DefaultSlotConfig() SlotBasicInfo {
	return SlotBasicInfo{SlotNum: 256, SlotReplicas: 2, SlotFunc: "crc32c"}
}

// HeartbeatRequest is one renewal report: who the node is, which table
// epoch it holds, and its per-slot status.
type HeartbeatRequest struct {
	RequestID      string        `json:"requestId"`
	Node           Node          `json:"node"`
	SlotTableEpoch int64         `json:"slotTableEpoch"`
	SlotStatuses   []slot.Status `json:"slotStatuses,omitempty"`
	DataCenter     string        `json:"dataCenter"`
	Timestamp      int64         `json:"timestamp"`
	SlotConfig     SlotBasicInfo `json:"slotConfig"`
	// SlotTable is the node's last externally recorded table snapshot,
	// nil when nothing has been recorded yet.
	SlotTable *slot.Table `json:"slotTable,omitempty"`
}

// HeartbeatResponse is the meta tier's authoritative answer. A nil or
// uninitialized SlotTable means "no update available", never "empty table".
type HeartbeatResponse struct {
	SlotTable    *slot.Table `json:"slotTable,omitempty"`
	DataNodes    []string    `json:"dataNodes,omitempty"`
	SessionNodes []string    `json:"sessionNodes,omitempty"`
}
