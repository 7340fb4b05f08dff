package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.AuditStore = (*InMemoryStore)(nil)
	_ core.AuditStore = (*BadgerStore)(nil)
	_ core.AuditStore = Discard{}
)

func records(t *testing.T, sessionID string, n int) []core.AuditRecord {
	t.Helper()
	out := make([]core.AuditRecord, n)
	for i := range out {
		rec, err := NewRecord(sessionID, i, core.AuditMetrics, core.SessionMetrics{TurnCount: i})
		require.NoError(t, err)
		out[i] = rec
	}
	return out
}

func testStore(t *testing.T, store core.AuditStore) {
	ctx := context.Background()
	for _, r := range append(records(t, "s1", 3), records(t, "s2", 2)...) {
		require.NoError(t, store.Append(ctx, r))
	}

	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, i, r.Turn)
		assert.NoError(t, Verify(r))
	}

	got[0].Payload[0] ^= 0xff
	again, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.NoError(t, Verify(again[0]))

	got, err = store.List(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	testStore(t, s)
	assert.Equal(t, 5, s.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Append(ctx, core.AuditRecord{}), context.Canceled)
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	testStore(t, s)
}

func TestBadgerStore_OrderBeyondSequenceLease(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	ctx := context.Background()
	for i := 0; i < 300; i++ {
		require.NoError(t, s.Append(ctx, core.AuditRecord{ID: fmt.Sprint(i), SessionID: "s", Turn: i}))
	}
	got, err := s.List(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 300)
	for i, r := range got {
		assert.Equal(t, i, r.Turn)
	}
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	rec := records(t, "s1", 1)[0]
	require.NoError(t, Discard{}.Append(context.Background(), rec))

	got, err := Discard{}.List(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
