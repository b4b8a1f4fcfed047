package retention

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRating_IsValid(t *testing.T) {
	assert.True(t, Fail.IsValid())
	assert.True(t, Hard.IsValid())
	assert.True(t, Good.IsValid())
	assert.True(t, Easy.IsValid())

	assert.False(t, Rating(0).IsValid())
	assert.False(t, Rating(5).IsValid())
	assert.False(t, Rating(-1).IsValid())
}

func TestRating_IsPass(t *testing.T) {
	assert.False(t, Fail.IsPass())
	assert.True(t, Hard.IsPass())
	assert.True(t, Good.IsPass())
	assert.True(t, Easy.IsPass())
	assert.False(t, Rating(5).IsPass())
}

func TestRating_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Good)
	require.NoError(t, err)
	assert.Equal(t, `"Good"`, string(data))

	var r Rating
	require.NoError(t, json.Unmarshal([]byte(`"Fail"`), &r))
	assert.Equal(t, Fail, r)

	assert.Error(t, json.Unmarshal([]byte(`"Perfect"`), &r))
}

func TestState_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Relearning)
	require.NoError(t, err)
	assert.Equal(t, `"Relearning"`, string(data))

	var s State
	require.NoError(t, json.Unmarshal([]byte(`"Review"`), &s))
	assert.Equal(t, Review, s)

	assert.Error(t, json.Unmarshal([]byte(`"Dreaming"`), &s))
}

func TestNewMemoryState(t *testing.T) {
	state := NewMemoryState()
	assert.Equal(t, New, state.State)
	assert.True(t, state.IsNew())
	assert.Nil(t, state.LastReview)
	assert.Zero(t, state.Stability)
}
