// Package telemetry exposes Prometheus counters for the index layer.
// The embedding process decides whether and where to serve them; nothing
// here opens a network surface.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreSets counts value box writes.
	StoreSets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messagebox_store_sets_total",
		Help: "Number of key writes against the value box.",
	})
	// StoreRemoves counts value box deletes.
	StoreRemoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messagebox_store_removes_total",
		Help: "Number of key deletes against the value box.",
	})
	// StoreRangeRows counts rows visited by range scans.
	StoreRangeRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messagebox_store_range_rows_total",
		Help: "Number of rows visited by value box range scans.",
	})

	// MediaSets counts media attach operations by outcome.
	MediaSets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messagebox_media_sets_total",
		Help: "Number of media attach operations, by result kind.",
	}, []string{"result"})
	// MediaPromotions counts reference-to-direct promotions.
	MediaPromotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messagebox_media_promotions_total",
		Help: "Number of media rows promoted from reference to direct.",
	})
	// MediaRemovals counts reference detach operations.
	MediaRemovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messagebox_media_removals_total",
		Help: "Number of media reference removals.",
	})

	// ChatListOps counts emitted chat-list operations by kind.
	ChatListOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messagebox_chatlist_ops_total",
		Help: "Number of chat-list operations emitted, by kind.",
	}, []string{"kind"})
)
