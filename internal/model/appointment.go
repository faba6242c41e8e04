package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentState string

const (
	AppointmentStateRequested AppointmentState = "requested"
	AppointmentStateConfirmed AppointmentState = "confirmed"
	AppointmentStateCompleted AppointmentState = "completed"
	AppointmentStateCancelled AppointmentState = "cancelled"
)

// transitions lists the states reachable from each state.
var transitions = map[AppointmentState][]AppointmentState{
	AppointmentStateRequested: {AppointmentStateConfirmed, AppointmentStateCancelled},
	AppointmentStateConfirmed: {AppointmentStateCompleted, AppointmentStateCancelled},
}

func (s AppointmentState) Valid() bool {
	switch s {
	case AppointmentStateRequested, AppointmentStateConfirmed,
		AppointmentStateCompleted, AppointmentStateCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AppointmentState) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s AppointmentState) CanTransitionTo(next AppointmentState) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	DoctorID     *uuid.UUID       `db:"doctor_id" json:"doctor_id,omitempty"`
	PatientID    uuid.UUID        `db:"patient_id" json:"patient_id"`
	RoomID       uuid.UUID        `db:"room_id" json:"room_id"`
	ServiceID    uuid.UUID        `db:"service_id" json:"service_id"`
	Date         time.Time        `db:"date" json:"date"`
	Slot         int              `db:"slot" json:"slot"`
	State        AppointmentState `db:"state" json:"state"`
	Content      string           `db:"content" json:"content"`
	CancelReason *string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type DocumentTag string

const (
	DocumentTagXRay         DocumentTag = "xray"
	DocumentTagPrescription DocumentTag = "prescription"
	DocumentTagInvoice      DocumentTag = "invoice"
	DocumentTagOther        DocumentTag = "other"
)

func (t DocumentTag) Valid() bool {
	switch t {
	case DocumentTagXRay, DocumentTagPrescription, DocumentTagInvoice, DocumentTagOther:
		return true
	}
	return false
}

// AppointmentDocument is owned by its appointment and removed with it.
type AppointmentDocument struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	AppointmentID uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	FilePath      string      `db:"file_path" json:"file_path"`
	Tag           DocumentTag `db:"tag" json:"tag"`
	Title         string      `db:"title" json:"title"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// ConflictKind selects which uniqueness invariant a conflict lookup checks.
type ConflictKind string

const (
	ConflictRoom   ConflictKind = "room"
	ConflictDoctor ConflictKind = "doctor"
)

type AppointmentFilters struct {
	RoomID    *uuid.UUID
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	State     AppointmentState
	From      *time.Time
	To        *time.Time
	Pagination
}

// SlotAvailability describes one slot of a room's day.
type SlotAvailability struct {
	Slot          int        `json:"slot"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Available     bool       `json:"available"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

// AppointmentEvent is the outbox payload for lifecycle changes.
type AppointmentEvent struct {
	AppointmentID uuid.UUID        `json:"appointment_id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	DoctorID      *uuid.UUID       `json:"doctor_id,omitempty"`
	RoomID        uuid.UUID        `json:"room_id"`
	Date          string           `json:"date"`
	Slot          int              `json:"slot"`
	State         AppointmentState `json:"state"`
	Reason        string           `json:"reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

const (
	EventAppointmentCreated     = "appointment.created"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentConfirmed   = "appointment.confirmed"
	EventAppointmentCompleted   = "appointment.completed"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentReassigned  = "appointment.reassigned"
)

// AppointmentEventTypes lists every event type the worker subscribes to.
var AppointmentEventTypes = []string{
	EventAppointmentCreated,
	EventAppointmentRescheduled,
	EventAppointmentConfirmed,
	EventAppointmentCompleted,
	EventAppointmentCancelled,
	EventAppointmentReassigned,
}
