package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"

	// Bookmark Metrics
	BookmarkCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_bookmark_created_total",
		Help: "Total number of bookmarks created.",
	})
	BookmarkDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_bookmark_deleted_total",
		Help: "Total number of bookmarks deleted.",
	})

	// Change Feed Metrics
	FeedEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_feed_events_published_total",
		Help: "Total number of change events published to the feed.",
	}, []string{"kind"})
	FeedEventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_feed_events_dropped_total",
		Help: "Total number of change events dropped for slow subscribers.",
	})
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_feed_subscribers",
		Help: "Current number of open change feed subscriptions.",
	})
)
