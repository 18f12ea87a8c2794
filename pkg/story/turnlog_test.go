package story

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnLog_Append(t *testing.T) {
	log := NewTurnLog()
	assert.Equal(t, 0, log.Len())

	first := log.Append("look around", "You see a dim hallway.")
	second := log.Append("open the door", "The door creaks open.")

	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, 2, log.Len())
	assert.Equal(t, "look around", log.At(0).Action)
	assert.Equal(t, "The door creaks open.", log.At(1).Response)
	assert.False(t, first.Timestamp.IsZero())
}

func TestTurnLog_RecordsReturnsCopy(t *testing.T) {
	log := NewTurnLog()
	log.Append("a", "b")

	records := log.Records()
	records[0].Action = "mutated"

	assert.Equal(t, "a", log.At(0).Action)
}

func TestTurnLog_Slice(t *testing.T) {
	log := NewTurnLog()
	for i := 0; i < 5; i++ {
		log.Append("a", "b")
	}

	assert.Len(t, log.Slice(3), 2)
	assert.Equal(t, 3, log.Slice(3)[0].Index)
	assert.Len(t, log.Slice(-1), 5)
	assert.Empty(t, log.Slice(99))
}

func TestTurnLog_Restore(t *testing.T) {
	now := time.Now().UTC()
	good := []TurnRecord{
		{Index: 0, Action: "a", Response: "r", Timestamp: now},
		{Index: 1, Action: "b", Response: "s", Timestamp: now},
	}

	log := NewTurnLog()
	require.NoError(t, log.Restore(good))
	assert.Equal(t, 2, log.Len())

	bad := []TurnRecord{
		{Index: 0, Action: "a", Response: "r"},
		{Index: 5, Action: "b", Response: "s"},
	}
	assert.Error(t, NewTurnLog().Restore(bad))
}
