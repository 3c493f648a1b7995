package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind tags the entries of the submission ledger.
type EventKind string

const (
	KindStarted    EventKind = "started"
	KindSubmission EventKind = "submission"
)

// Event is one ledger entry. Started events carry only Kind and Timestamp;
// submission events carry every field.
type Event struct {
	Kind       EventKind
	StudentID  string
	QuestionID string
	Response   string
	Timestamp  time.Time
	Signature  []byte
}

// Millis is the event timestamp as Unix milliseconds, the unit used on the
// wire and in the signed payload.
func (e Event) Millis() int64 { return e.Timestamp.UnixMilli() }

type Admin struct {
	ID           uuid.UUID
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

type Student struct {
	ID           uuid.UUID
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Question holds sealed (encrypted) text; see pkc/seal.
type Question struct {
	ID        uuid.UUID
	AdminID   uuid.UUID
	Question  []byte
	Options   [4][]byte
	CreatedAt time.Time
}

type Answer struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Answer     []byte
}
