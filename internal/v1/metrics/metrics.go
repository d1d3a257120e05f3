// Package metrics defines the Prometheus instruments for the chat core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks live WebSocket clients.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "hub",
		Name:      "connected_clients",
		Help:      "Number of WebSocket clients currently registered.",
	})

	// OnlineUsers tracks distinct users with at least one client.
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "hub",
		Name:      "online_users",
		Help:      "Number of distinct users currently online.",
	})

	// ActiveFeeds tracks rooms with at least one subscribed client.
	ActiveFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "hub",
		Name:      "active_feeds",
		Help:      "Number of rooms with at least one subscribed client.",
	})

	// EventsInbound counts client events by variant.
	EventsInbound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "ws",
		Name:      "events_inbound_total",
		Help:      "Inbound WebSocket events by variant.",
	}, []string{"kind"})

	// EventsDropped counts outbound events lost to full or closed client buffers.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "ws",
		Name:      "events_dropped_total",
		Help:      "Outbound events dropped because a client buffer was full or closed.",
	})

	// MessagesBroadcast counts chat messages fanned out to rooms.
	MessagesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "hub",
		Name:      "messages_broadcast_total",
		Help:      "Chat messages broadcast to room feeds.",
	})

	// CallAttempts counts call admissions by outcome (ringing, busy, offline).
	CallAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "calls",
		Name:      "attempts_total",
		Help:      "Call attempts by admission outcome.",
	}, []string{"outcome"})

	// AuthFailures counts rejected logins and session checks.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Failed logins and session verifications.",
	})
)
