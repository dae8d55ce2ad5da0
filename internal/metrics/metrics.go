package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "registry"
)

var (
	// RenewCycles counts heartbeat renewal rounds by outcome
	RenewCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renew_cycles_total",
			Help:      "Total number of heartbeat renewal cycles",
		},
		[]string{"result"}, // success/error
	)

	// RenewDuration measures heartbeat round-trip latency
	RenewDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "renew_duration_seconds",
			Help:      "Heartbeat renewal round-trip latency in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// SlotTableEpoch tracks the epoch of the locally applied slot table
	SlotTableEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slot_table_epoch",
			Help:      "Epoch of the slot table this node currently holds",
		},
	)

	// EmptySlotTables counts renew responses without a usable slot table
	EmptySlotTables = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renew_empty_slot_tables_total",
			Help:      "Renew responses carrying a nil or uninitialized slot table",
		},
	)

	// CleanerCycles counts expiry cleaner rounds by outcome
	CleanerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_manager_cleaner_cycles_total",
			Help:      "Total number of client manager cleaner cycles",
		},
		[]string{"result"}, // skipped/cleaned/idle/error
	)

	// CleanedAddresses counts client addresses removed by the cleaner
	CleanedAddresses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_manager_cleaned_addresses_total",
			Help:      "Total number of expired client-off addresses removed",
		},
	)

	// PendingExpiredAddresses tracks expired addresses still awaiting cleanup
	PendingExpiredAddresses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_manager_pending_expired_addresses",
			Help:      "Client-off addresses older than the retention cutoff not yet removed",
		},
	)

	// StableLeader reports whether this process is the stable meta leader
	StableLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "meta_stable_leader",
			Help:      "1 when this process is the stable meta leader",
		},
	)

	// RenewedNodes tracks nodes with a live lease on the meta tier
	RenewedNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "meta_renewed_nodes",
			Help:      "Nodes currently holding a live renewal lease",
		},
		[]string{"kind"}, // data/session
	)
)
