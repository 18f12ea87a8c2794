package story

import (
	"fmt"
	"time"
)

// TurnRecord is a single player-action/narrator-response exchange.
// Records are immutable once appended to a TurnLog.
type TurnRecord struct {
	Index     int       `json:"index"`
	Action    string    `json:"action"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnLog is the append-only, ordered store of turns for one session.
// Indexes start at 0 and increase by one per append.
type TurnLog struct {
	records []TurnRecord
}

func NewTurnLog() *TurnLog {
	return &TurnLog{records: make([]TurnRecord, 0)}
}

// Append creates a new record at the next index and returns it.
func (l *TurnLog) Append(action, response string) TurnRecord {
	rec := TurnRecord{
		Index:     len(l.records),
		Action:    action,
		Response:  response,
		Timestamp: time.Now().UTC(),
	}
	l.records = append(l.records, rec)
	return rec
}

// Len returns the number of recorded turns.
func (l *TurnLog) Len() int {
	return len(l.records)
}

// At returns the record at index i. It panics on out-of-range access,
// matching slice semantics.
func (l *TurnLog) At(i int) TurnRecord {
	return l.records[i]
}

// Records returns a copy of all records in chronological order.
func (l *TurnLog) Records() []TurnRecord {
	out := make([]TurnRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Slice returns a copy of records[from:], clamped to valid bounds.
func (l *TurnLog) Slice(from int) []TurnRecord {
	if from < 0 {
		from = 0
	}
	if from > len(l.records) {
		from = len(l.records)
	}
	out := make([]TurnRecord, len(l.records)-from)
	copy(out, l.records[from:])
	return out
}

// Restore replaces the log contents with a previously persisted record
// sequence. Indexes must be contiguous from 0; anything else indicates
// a corrupted or reordered save.
func (l *TurnLog) Restore(records []TurnRecord) error {
	for i, rec := range records {
		if rec.Index != i {
			return fmt.Errorf("turn record at position %d has index %d", i, rec.Index)
		}
	}
	l.records = make([]TurnRecord, len(records))
	copy(l.records, records)
	return nil
}
