package models

import (
	"time"

	"github.com/google/uuid"
)

type EntryMode string

const (
	EntryOnFoot  EntryMode = "on_foot"
	EntryVehicle EntryMode = "vehicle"
)

func (m EntryMode) Valid() bool {
	return m == EntryOnFoot || m == EntryVehicle
}

// AccessEvent records one consumed credential. Exactly one is appended per
// successful confirmation, and it is never updated afterwards.
type AccessEvent struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CredentialID uuid.UUID `json:"credential_id" db:"credential_id"`
	GuardID      uuid.UUID `json:"guard_id" db:"guard_id"`
	EntryMode    EntryMode `json:"entry_mode" db:"entry_mode"`
	Plates       *string   `json:"plates,omitempty" db:"plates"`
	Note         *string   `json:"note,omitempty" db:"note"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AccessEventDetail is an event joined with the names a dashboard needs.
type AccessEventDetail struct {
	AccessEvent
	VisitorName string `json:"visitor_name" db:"visitor_name"`
	VisitorType string `json:"visitor_type" db:"visitor_type"`
	GuardName   string `json:"guard_name" db:"guard_name"`
}
