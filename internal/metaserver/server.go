// Package metaserver is the coordination-tier side of the renewal protocol:
// it tracks which nodes hold a live renewal lease and answers heartbeats
// with the authoritative slot table and current node lists.
package metaserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/struggle121224/sofa-registry/internal/metrics"
	"github.com/struggle121224/sofa-registry/internal/renewal"
	"github.com/struggle121224/sofa-registry/internal/slot"
)

const defaultLeaseTTL = 30 * time.Second

// Server holds the meta tier's authoritative view.
type Server struct {
	leaseTTL   time.Duration
	slotConfig renewal.SlotBasicInfo
	clk        clock.Clock
	log        *zap.Logger

	mu    sync.Mutex
	table slot.Table
	nodes map[renewal.NodeKind]map[string]time.Time // ip -> last renew
}

func NewServer(leaseTTL time.Duration, log *zap.Logger) *Server {
	return newServer(leaseTTL, log, clock.New())
}

func newServer(leaseTTL time.Duration, log *zap.Logger, clk clock.Clock) *Server {
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	return &Server{
		leaseTTL:   leaseTTL,
		slotConfig: renewal.DefaultSlotConfig(),
		clk:        clk,
		log:        log.Named("metaServer"),
		table:      slot.InitTable(),
		nodes: map[renewal.NodeKind]map[string]time.Time{
			renewal.NodeKindData:    {},
			renewal.NodeKindSession: {},
		},
	}
}

// SetSlotTable publishes a newly computed assignment. Stale epochs are
// absorbed so the assignment process can republish safely.
func (s *Server) SetSlotTable(t slot.Table) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch <= s.table.Epoch {
		return false
	}
	s.table = t.Copy()
	s.log.Info("authoritative slot table published",
		zap.Int64("epoch", s.table.Epoch),
		zap.Int("slots", len(s.table.Slots)))
	return true
}

// SlotTable returns a copy of the authoritative table.
func (s *Server) SlotTable() slot.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Copy()
}

// HandleRenewal records the reporting node's lease and answers with the
// authoritative table plus the node lists of both tiers.
func (s *Server) HandleRenewal(req renewal.HeartbeatRequest) (renewal.HeartbeatResponse, error) {
	if req.Node.IP == "" {
		return renewal.HeartbeatResponse{}, fmt.Errorf("heartbeat without node identity")
	}
	if req.SlotConfig != s.slotConfig {
		return renewal.HeartbeatResponse{}, fmt.Errorf("slot config mismatch: got %+v want %+v",
			req.SlotConfig, s.slotConfig)
	}
	kind := req.Node.Kind
	if kind != renewal.NodeKindData && kind != renewal.NodeKindSession {
		return renewal.HeartbeatResponse{}, fmt.Errorf("unknown node kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	s.nodes[kind][req.Node.IP] = now
	s.expireLocked(now)

	resp := renewal.HeartbeatResponse{
		DataNodes:    s.nodeListLocked(renewal.NodeKindData),
		SessionNodes: s.nodeListLocked(renewal.NodeKindSession),
	}
	t := s.table.Copy()
	resp.SlotTable = &t

	s.log.Debug("renewed node",
		zap.String("requestId", req.RequestID),
		zap.String("node", req.Node.IP),
		zap.String("kind", string(kind)),
		zap.Int64("reportedEpoch", req.SlotTableEpoch))
	return resp, nil
}

func (s *Server) expireLocked(now time.Time) {
	for kind, leases := range s.nodes {
		for ip, last := range leases {
			if now.Sub(last) > s.leaseTTL {
				delete(leases, ip)
				s.log.Info("node lease expired",
					zap.String("node", ip), zap.String("kind", string(kind)))
			}
		}
		metrics.RenewedNodes.WithLabelValues(string(kind)).Set(float64(len(leases)))
	}
}

func (s *Server) nodeListLocked(kind renewal.NodeKind) []string {
	out := make([]string, 0, len(s.nodes[kind]))
	for ip := range s.nodes[kind] {
		out = append(out, ip)
	}
	return out
}

// Nodes returns the live node IPs of one tier.
func (s *Server) Nodes(kind renewal.NodeKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.clk.Now())
	return s.nodeListLocked(kind)
}
