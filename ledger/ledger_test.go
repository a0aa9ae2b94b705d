package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSightingStampsFirstAndLastSeen(t *testing.T) {
	m := NewMesh()
	require.True(t, m.RecordSighting("NODE1", []byte("key1")))

	entry, ok := m.LedgerEntryFor("NODE1")
	require.True(t, ok)
	assert.Equal(t, entry.FirstSeen, entry.LastSeen)

	require.True(t, m.RecordSighting("NODE1", []byte("key1")))
	entry2, ok := m.LedgerEntryFor("NODE1")
	require.True(t, ok)
	assert.Equal(t, entry.FirstSeen, entry2.FirstSeen)
	assert.True(t, !entry2.LastSeen.Before(entry.LastSeen))
}

func TestRecordSightingRejectsKeyMismatch(t *testing.T) {
	m := NewMesh()
	require.True(t, m.RecordSighting("NODE1", []byte("key1")))
	assert.False(t, m.RecordSighting("NODE1", []byte("key2")))
}

func TestValidateNodeIdentityAllowsUnknownOrMatchingKey(t *testing.T) {
	m := NewMesh()
	assert.True(t, m.ValidateNodeIdentity("UNSEEN", []byte("anything")))

	m.RecordSighting("NODE1", []byte("key1"))
	assert.True(t, m.ValidateNodeIdentity("NODE1", []byte("key1")))
	assert.False(t, m.ValidateNodeIdentity("NODE1", []byte("key2")))
}

func TestPromotionWorkflow(t *testing.T) {
	m := NewMesh()
	m.TrackPotentialContact("NODE1")
	assert.Equal(t, []string{"NODE1"}, m.PendingRequests())
	assert.Empty(t, m.PromotedContacts())

	assert.True(t, m.MarkAsPromoted("NODE1"))
	assert.Empty(t, m.PendingRequests())
	assert.Equal(t, []string{"NODE1"}, m.PromotedContacts())
}

func TestMarkAsPromotedUnknownNodeFails(t *testing.T) {
	m := NewMesh()
	assert.False(t, m.MarkAsPromoted("GHOST"))
}

func TestResetIdentityClearsNeighborsAndContactsButNotLedger(t *testing.T) {
	m := NewMesh()
	m.AddNeighbor("NEIGH1")
	m.TrackPotentialContact("NODE1")
	m.RecordSighting("NODE1", []byte("key1"))

	m.ResetIdentity()

	assert.Empty(t, m.Neighbors())
	assert.Empty(t, m.PendingRequests())
	_, ok := m.LedgerEntryFor("NODE1")
	assert.True(t, ok, "eternal ledger must survive identity reset")
}

func TestRecentlyActiveFiltersByWindowAndSortsNewestFirst(t *testing.T) {
	m := NewMesh()
	now := time.Now()
	m.now = func() time.Time { return now.Add(-time.Hour) }
	m.RecordSighting("OLD", nil)
	m.now = func() time.Time { return now }
	m.RecordSighting("NEW", nil)

	active := m.RecentlyActive(now, 30*time.Minute)
	require.Len(t, active, 1)
	assert.Equal(t, "NEW", active[0].NodeID)

	all := m.RecentlyActive(now, 2*time.Hour)
	require.Len(t, all, 2)
	assert.Equal(t, "NEW", all[0].NodeID)
}
