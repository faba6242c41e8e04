package model

import (
	"time"

	"github.com/google/uuid"
)

// Doctor shares its ID with the underlying user account. Only verified
// doctors can be assigned to appointments.
type Doctor struct {
	Base
	FullName        string  `db:"full_name" json:"full_name"`
	Email           string  `db:"email" json:"email"`
	Major           string  `db:"major" json:"major"`
	Verified        bool    `db:"verified" json:"verified"`
	CertificatePath *string `db:"certificate_path" json:"certificate_path,omitempty"`
}

// DoctorEvent is the outbox payload for doctor registration changes.
type DoctorEvent struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email,omitempty"`
	Major      string    `json:"major,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	// EventDoctorRequested asks administrators to review a new doctor.
	EventDoctorRequested = "doctor.requested"
	EventDoctorVerified  = "doctor.verified"
)

var DoctorEventTypes = []string{
	EventDoctorRequested,
	EventDoctorVerified,
}
