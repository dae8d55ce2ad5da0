package renewal

import (
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/struggle121224/sofa-registry/internal/metrics"
	"github.com/struggle121224/sofa-registry/internal/slot"
)

// PeerExchanger manages connections to one tier of peer nodes. Both calls
// are non-blocking; the reconnect sweep runs in the background.
type PeerExchanger interface {
	SetServerIPs(ips []string)
	NotifyConnectAsync()
}

// Renewer is the Handler for a worker node. It reports the slot manager's
// current view and applies the authoritative table and peer lists that come
// back. It also implements slot.Recorder so an external assignment process
// can feed the snapshot carried in the next heartbeat.
type Renewer struct {
	node         Node
	slots        *slot.Manager
	recorder     *slot.SnapshotRecorder
	dataPeers    PeerExchanger
	sessionPeers PeerExchanger
	slotConfig   SlotBasicInfo
	clk          clock.Clock
	log          *zap.Logger
}

func NewRenewer(node Node, slots *slot.Manager, dataPeers, sessionPeers PeerExchanger, log *zap.Logger) *Renewer {
	return &Renewer{
		node:         node,
		slots:        slots,
		recorder:     slot.NewSnapshotRecorder(),
		dataPeers:    dataPeers,
		sessionPeers: sessionPeers,
		slotConfig:   DefaultSlotConfig(),
		clk:          clock.New(),
		log:          log.Named("renewer"),
	}
}

// Record stores t as the snapshot carried by the next outgoing heartbeat.
func (r *Renewer) Record(t slot.Table) {
	r.recorder.Record(t)
}

// CreateRequest builds the heartbeat from one atomic epoch/status snapshot.
func (r *Renewer) CreateRequest() HeartbeatRequest {
	epoch, statuses := r.slots.EpochAndStatuses()
	req := HeartbeatRequest{
		RequestID:      uuid.NewString(),
		Node:           r.node,
		SlotTableEpoch: epoch,
		SlotStatuses:   statuses,
		DataCenter:     r.node.DataCenter,
		Timestamp:      r.clk.Now().UnixMilli(),
		SlotConfig:     r.slotConfig,
	}
	if t, ok := r.recorder.Snapshot(); ok {
		req.SlotTable = &t
	}
	return req
}

// HandleRenewResult refreshes both peer exchangers from the returned node
// lists and applies the slot table when it carries a real epoch. A nil or
// uninitialized table is a protocol anomaly: logged, counted, no state
// change.
func (r *Renewer) HandleRenewResult(resp HeartbeatResponse) {
	if len(resp.DataNodes) > 0 && r.dataPeers != nil {
		r.dataPeers.SetServerIPs(resp.DataNodes)
		r.dataPeers.NotifyConnectAsync()
	}
	if len(resp.SessionNodes) > 0 && r.sessionPeers != nil {
		r.sessionPeers.SetServerIPs(resp.SessionNodes)
		r.sessionPeers.NotifyConnectAsync()
	}

	if resp.SlotTable != nil && resp.SlotTable.Epoch != slot.InitEpoch {
		r.slots.UpdateSlotTable(*resp.SlotTable)
		return
	}
	metrics.EmptySlotTables.Inc()
	state := "nil"
	if resp.SlotTable != nil {
		state = "init"
	}
	r.log.Error("renew result slot table unusable", zap.String("table", state))
}
