// Package telemetry exposes prometheus collectors for the sync engine.
// Served at /metrics by the local API.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsApplied counts remote change events applied to the store,
	// labeled by kind (added, modified, removed).
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retrolog_events_applied_total",
		Help: "Remote change events applied to the local store by kind.",
	}, []string{"kind"})

	// EventsDeduped counts upserts that merged into an existing entity
	// instead of allocating a new sequence number.
	EventsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retrolog_events_deduped_total",
		Help: "Change events merged into an existing message (replay or modify).",
	})

	// EventsDropped counts events discarded before application
	// (undecodable snapshots, queue overflow).
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retrolog_events_dropped_total",
		Help: "Change events discarded before application.",
	})

	// QueueDepth tracks the intake queue backlog.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "retrolog_intake_queue_depth",
		Help: "Change events waiting in the intake queue.",
	})

	// StoreSize tracks live messages in the local store.
	StoreSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "retrolog_store_messages",
		Help: "Messages currently held by the local store.",
	})

	// SendsAccepted counts outbound creates accepted by the remote.
	SendsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retrolog_sends_accepted_total",
		Help: "Outbound message creates accepted by the remote collection.",
	})

	// SendsRejected counts writes rejected by policy, labeled by reason.
	SendsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retrolog_sends_rejected_total",
		Help: "Outbound writes rejected by the write policy engine by reason.",
	}, []string{"reason"})
)
