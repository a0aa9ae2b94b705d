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
	// StoreBytesUsed tracks the store's current size, against
	// store.QuotaConfig.MaxBytes.
	StoreBytesUsed = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bytes_used",
			Help:      "Current number of bytes held in the outbox store",
		},
	)

	// StoreMessagesAdmitted tracks Engine.Store outcomes.
	StoreMessagesAdmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "messages_admitted_total",
			Help:      "Total number of messages admitted or rejected by the store",
		},
		[]string{"status"}, // admitted, quota_exceeded, must_retain
	)

	// StoreEvictions tracks messages evicted to free quota.
	StoreEvictions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "evictions_total",
			Help:      "Total number of messages evicted to free quota",
		},
	)

	// StoreQuotaStatus reports the current QuotaStatus as a gauge (0=ok,
	// 1=warning, 2=critical, 3=full) so it can be alerted on directly.
	StoreQuotaStatus = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "quota_status",
			Help:      "Current quota status: 0=ok, 1=warning, 2=critical, 3=full",
		},
	)

	// DeliveryAttempts tracks the C8 delivery loop's forward attempts.
	DeliveryAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "delivery_attempts_total",
			Help:      "Total number of store delivery forward attempts",
		},
		[]string{"status"}, // delivered, failed
	)
)
