package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/storycli/storycli/pkg/story"
)

// SnapshotVersion is the save schema version. Loaders reject any
// other value rather than guessing at the layout.
const SnapshotVersion = 1

// ErrCorruptSave indicates a save blob that cannot be trusted:
// unreadable, wrong schema version, or internally inconsistent.
var ErrCorruptSave = errors.New("corrupt save")

// Snapshot is the persisted form of a session plus the story buffer's
// summary state. Field order and contents are sufficient to rebuild a
// session whose next context payload is byte-identical to the
// original's.
type Snapshot struct {
	Version   int                `json:"version"`
	ID        uuid.UUID          `json:"id"`
	Genre     GenreSelection     `json:"genre"`
	Character CharacterState     `json:"character"`
	Turns     []story.TurnRecord `json:"turns"`
	Summary   string             `json:"summary,omitempty"`
	Folded    int                `json:"summarized_through"`
}

// Snapshot captures the session and the buffer's summary carry-forward.
func (s *Session) Snapshot(buf *story.Buffer) *Snapshot {
	return &Snapshot{
		Version:   SnapshotVersion,
		ID:        s.ID,
		Genre:     s.Genre,
		Character: *s.Character,
		Turns:     s.Log.Records(),
		Summary:   buf.Summary(),
		Folded:    buf.FoldedThrough(),
	}
}

// Encode serializes the snapshot as a JSON blob.
func (snap *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and validates a save blob. Any structural
// problem is reported as ErrCorruptSave; the caller's in-memory
// session is never touched by a failed load.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptSave, snap.Version)
	}
	if err := snap.Genre.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if snap.Character.Name == "" {
		return nil, fmt.Errorf("%w: missing character name", ErrCorruptSave)
	}
	for i, rec := range snap.Turns {
		if rec.Index != i {
			return nil, fmt.Errorf("%w: turn %d has index %d", ErrCorruptSave, i, rec.Index)
		}
	}
	if snap.Folded < 0 || snap.Folded > len(snap.Turns) {
		return nil, fmt.Errorf("%w: fold point %d out of range", ErrCorruptSave, snap.Folded)
	}
	if snap.Folded == 0 && snap.Summary != "" {
		return nil, fmt.Errorf("%w: summary present with no folded turns", ErrCorruptSave)
	}
	return &snap, nil
}

// Restore rebuilds a live session from a validated snapshot.
func (snap *Snapshot) Restore() (*Session, error) {
	log := story.NewTurnLog()
	if err := log.Restore(snap.Turns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	character := snap.Character
	return &Session{
		ID:        snap.ID,
		Genre:     snap.Genre,
		Character: &character,
		Log:       log,
	}, nil
}
