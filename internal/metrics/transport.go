// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectAttempts tracks C7 Connect calls by transport and outcome.
	ConnectAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connect_attempts_total",
			Help:      "Total number of transport connect attempts",
		},
		[]string{"transport", "status"}, // websocket/ble/webrtc/mdns, success/failure
	)

	// PeersConnected tracks the number of peers with at least one
	// CONNECTED transport right now.
	PeersConnected = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "peers_connected",
			Help:      "Current number of reachable peers across all transports",
		},
	)

	// PeersDisconnected tracks on_peer_disconnected events.
	PeersDisconnected = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "peers_disconnected_total",
			Help:      "Total number of peer disconnect events",
		},
	)

	// SendAttempts tracks Manager.Send attempts, by transport and status.
	SendAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "send_attempts_total",
			Help:      "Total number of per-transport send attempts",
		},
		[]string{"transport", "status"},
	)

	// SendDuration tracks how long a send (including retries) took.
	SendDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "send_duration_seconds",
			Help:      "Send duration in seconds, including retries",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
	)

	// TransportState mirrors Manager's per-peer-per-transport state table
	// (transport.State's own numbering: 0=new, 1=connecting, 2=connected,
	// 3=disconnected, 4=failed, 5=closed) so a scrape can see exactly what
	// each transport believes about each peer, not just the aggregate
	// reachable count.
	TransportState = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "state",
			Help:      "Per-peer, per-transport connection state (transport.State numbering: 0=new 1=connecting 2=connected 3=disconnected 4=failed 5=closed)",
		},
		[]string{"peer", "transport"},
	)
)
