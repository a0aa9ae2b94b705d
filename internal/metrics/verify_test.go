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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	if ConnectAttempts == nil {
		t.Error("ConnectAttempts metric is nil")
	}
	if PeersConnected == nil {
		t.Error("PeersConnected metric is nil")
	}
	if SendDuration == nil {
		t.Error("SendDuration metric is nil")
	}

	if StoreBytesUsed == nil {
		t.Error("StoreBytesUsed metric is nil")
	}
	if StoreMessagesAdmitted == nil {
		t.Error("StoreMessagesAdmitted metric is nil")
	}
	if StoreQuotaStatus == nil {
		t.Error("StoreQuotaStatus metric is nil")
	}

	if CryptoOperations == nil {
		t.Error("CryptoOperations metric is nil")
	}

	if MessagesProcessed == nil {
		t.Error("MessagesProcessed metric is nil")
	}
}

func TestMetricsIncrement(t *testing.T) {
	ConnectAttempts.WithLabelValues("websocket", "success").Inc()
	PeersConnected.Set(3)
	SendAttempts.WithLabelValues("ble", "failure").Inc()
	SendDuration.Observe(0.01)

	StoreMessagesAdmitted.WithLabelValues("admitted").Inc()
	StoreEvictions.Inc()
	StoreQuotaStatus.Set(1)
	DeliveryAttempts.WithLabelValues("delivered").Inc()

	CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	CryptoOperations.WithLabelValues("decrypt", "x25519").Inc()

	MessagesProcessed.WithLabelValues("forwarded").Inc()
	DuplicatesDropped.Inc()

	if count := testutil.CollectAndCount(ConnectAttempts); count == 0 {
		t.Error("ConnectAttempts has no metrics collected")
	}
	if count := testutil.CollectAndCount(StoreMessagesAdmitted); count == 0 {
		t.Error("StoreMessagesAdmitted has no metrics collected")
	}
	if count := testutil.CollectAndCount(CryptoOperations); count == 0 {
		t.Error("CryptoOperations has no metrics collected")
	}
}
