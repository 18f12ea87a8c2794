// Package session holds the aggregate state of one playthrough: the
// genre selection, the player character, and the append-only turn
// log, plus the versioned snapshot layout used for saves.
package session

import (
	"github.com/google/uuid"

	"github.com/storycli/storycli/pkg/story"
)

// Session is the aggregate root for a single playthrough. It is
// created at game start, mutated only by the turn loop, and
// serialized wholesale on save.
type Session struct {
	ID        uuid.UUID
	Genre     GenreSelection
	Character *CharacterState
	Log       *story.TurnLog
}

// New creates a session for the chosen genre and character name.
func New(genre GenreSelection, name string) *Session {
	return &Session{
		ID:        uuid.New(),
		Genre:     genre,
		Character: NewCharacter(name),
		Log:       story.NewTurnLog(),
	}
}

// Turns returns the number of completed turns.
func (s *Session) Turns() int {
	return s.Log.Len()
}
