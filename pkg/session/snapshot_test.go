package session

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycli/storycli/pkg/story"
)

func testGenre() GenreSelection {
	return GenreSelection{Main: GenreMystery, Sub: SubGenreFantasy}
}

func newTestBuffer(t *testing.T, sess *Session) *story.Buffer {
	t.Helper()
	buf, err := story.NewBuffer(sess.Log, story.BufferConfig{
		MaxWindow:   3,
		TokenBudget: 1 << 20,
		Directive:   "Tell a mystery story.",
		Sheet:       sess.Character,
	})
	require.NoError(t, err)
	return buf
}

func TestSnapshot_RoundTrip(t *testing.T) {
	sess := New(testGenre(), "Rae")
	buf := newTestBuffer(t, sess)
	for i := 0; i < 7; i++ {
		buf.RecordTurn(fmt.Sprintf("action %d", i), fmt.Sprintf("Response %d happens.", i))
	}
	sess.Character.AdjustStat(StatHealth, -12)
	sess.Character.AddItem("Lantern")
	sess.Character.SetFlag("found_cellar")

	before, err := buf.BuildContext("open the hatch")
	require.NoError(t, err)

	data, err := sess.Snapshot(buf).Encode()
	require.NoError(t, err)

	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)

	restored, err := snap.Restore()
	require.NoError(t, err)
	restoredBuf := newTestBuffer(t, restored)
	require.NoError(t, restoredBuf.RestoreFold(snap.Folded, snap.Summary))

	after, err := restoredBuf.BuildContext("open the hatch")
	require.NoError(t, err)

	assert.Equal(t, before, after, "restored session must rebuild the identical context payload")
	assert.Equal(t, sess.ID, restored.ID)
	assert.Equal(t, sess.Genre, restored.Genre)
	assert.Equal(t, 88, restored.Character.Stats[StatHealth])
	assert.Equal(t, []string{"Lantern"}, restored.Character.Inventory)
	assert.True(t, restored.Character.Flags["found_cellar"])
	assert.Equal(t, 7, restored.Log.Len())
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	sess := New(testGenre(), "Rae")
	buf := newTestBuffer(t, sess)
	buf.RecordTurn("look", "You look.")
	base := sess.Snapshot(buf)

	mutate := func(fn func(s *Snapshot)) []byte {
		snap := *base
		snap.Turns = append([]story.TurnRecord(nil), base.Turns...)
		fn(&snap)
		data, err := snap.Encode()
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{nope")},
		{"wrong version", mutate(func(s *Snapshot) { s.Version = 99 })},
		{"bad genre", mutate(func(s *Snapshot) { s.Genre.Main = "romance" })},
		{"missing name", mutate(func(s *Snapshot) { s.Character.Name = "" })},
		{"reordered turns", mutate(func(s *Snapshot) { s.Turns[0].Index = 3 })},
		{"fold out of range", mutate(func(s *Snapshot) { s.Folded = 10 })},
		{"orphan summary", mutate(func(s *Snapshot) { s.Summary = "stray"; s.Folded = 0 })},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeSnapshot(tc.data)
			assert.ErrorIs(t, err, ErrCorruptSave)
		})
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	sess := New(testGenre(), "Rae")
	buf := newTestBuffer(t, sess)

	data, err := sess.Snapshot(buf).Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"version", "id", "genre", "character", "turns", "summarized_through"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "summary", "empty summary stays out of the blob")
}

func TestGenreSelection_Validate(t *testing.T) {
	assert.NoError(t, testGenre().Validate())
	assert.Error(t, GenreSelection{Main: "romance", Sub: SubGenreFantasy}.Validate())
	assert.Error(t, GenreSelection{Main: GenreMystery, Sub: "western"}.Validate())
	assert.Equal(t, "fantasy mystery", testGenre().String())
}
