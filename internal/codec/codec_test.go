package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string            `cbor:"name"`
	Tags   map[string]string `cbor:"tags"`
	Stamp  time.Time         `cbor:"stamp"`
	Values []float64         `cbor:"values"`
}

func TestMarshal_Deterministic(t *testing.T) {
	a := sample{Name: "x", Tags: map[string]string{"b": "2", "a": "1", "c": "3"}, Stamp: time.Unix(10, 5).UTC()}
	b := sample{Name: "x", Tags: map[string]string{"c": "3", "a": "1", "b": "2"}, Stamp: time.Unix(10, 5).UTC()}

	da, err := Marshal(a)
	require.NoError(t, err)
	db, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	var back sample
	require.NoError(t, Unmarshal(da, &back))
	assert.Equal(t, a.Tags, back.Tags)
	assert.True(t, a.Stamp.Equal(back.Stamp))
}

func TestHash_DomainsAndExtras(t *testing.T) {
	v := sample{Name: "x"}

	h1, err := Hash(DomainShare, v)
	require.NoError(t, err)
	h2, err := Hash(DomainShare, v)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other, err := Hash(DomainRationale, v)
	require.NoError(t, err)
	assert.NotEqual(t, h1, other)

	salted, err := Hash(DomainShare, v, []byte("trigger-1"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, salted)
}
