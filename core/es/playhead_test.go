package es

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlayhead(t *testing.T) {
	p0, p1 := Playhead(0), Playhead(1)
	require.True(t, p0 < p1)
	require.Equal(t, p1, p0.Next())
	require.Equal(t, uint64(1), p1.Uint64())

	data, err := json.Marshal(p1)
	require.NoError(t, err)
	require.Equal(t, `1`, string(data))

	var x Playhead
	require.NoError(t, json.Unmarshal([]byte("1234"), &x))
	require.Equal(t, Playhead(1234), x)

	require.Equal(t, "aggregate_playhead", p1.SlogAttrWithKey("aggregate_playhead").Key)
}
