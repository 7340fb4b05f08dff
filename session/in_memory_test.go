package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func newState(id string) *core.SessionState {
	return core.NewSessionState(id, core.SessionTypeDiscussion, core.AutonomyBalanced, testutil.Epoch)
}

func TestInMemoryStore_CreateGet(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Create(newState("s1")))
	assert.ErrorIs(t, s.Create(newState("s1")), core.ErrSessionExists)

	got, err := s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseInitialization, got.Phase)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Create(newState("s1")))

	got, err := s.Get("s1")
	require.NoError(t, err)
	got.History = append(got.History, testutil.NewMessageBuilder("a").Build())
	got.Records["r"] = testutil.NewRecord("r", "a", 0.5, 1)

	again, err := s.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, again.History)
	assert.Empty(t, again.Records)
}

func TestInMemoryStore_SaveChecksPhaseAndHistory(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Create(newState("s1")))

	st, _ := s.Get("s1")
	st.Phase = core.PhaseConsensusBuilding
	assert.ErrorIs(t, s.Save(st), core.ErrSessionCorrupted)

	st.Phase = core.PhaseActive
	st.History = append(st.History, testutil.NewMessageBuilder("a").Build())
	require.NoError(t, s.Save(st))

	st.History = nil
	assert.ErrorIs(t, s.Save(st), core.ErrSessionCorrupted)

	assert.ErrorIs(t, s.Save(newState("other")), core.ErrSessionNotFound)
}

func TestInMemoryStore_ListDelete(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Create(newState("b")))
	require.NoError(t, s.Create(newState("a")))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))
	ids, _ = s.List()
	assert.Equal(t, []string{"b"}, ids)
}
