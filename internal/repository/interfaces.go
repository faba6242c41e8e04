package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// All repository interfaces in one file.
//
// Lookups of a missing record return an error matching
// apperrors.ErrNotFound. Driver failures are reported as
// apperrors.ErrPersistence, and a write that would break one of the
// appointment uniqueness invariants fails with ErrRoomConflict or
// ErrDoctorConflict.
type (
	RoomRepository interface {
		Create(ctx context.Context, room *model.Room) error
		Get(ctx context.Context, id uuid.UUID) (*model.Room, error)
		Update(ctx context.Context, room *model.Room) error
		// Delete removes the room together with its appointments.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, page model.Pagination) ([]*model.Room, int, error)
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, page model.Pagination) ([]*model.Service, int, error)
		SetRequiredDevices(ctx context.Context, serviceID uuid.UUID, deviceIDs []uuid.UUID) error
		RequiredDevices(ctx context.Context, serviceID uuid.UUID) ([]*model.Device, error)
	}

	DeviceRepository interface {
		Create(ctx context.Context, device *model.Device) error
		Get(ctx context.Context, id uuid.UUID) (*model.Device, error)
		Update(ctx context.Context, device *model.Device) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, roomID *uuid.UUID) ([]*model.Device, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, page model.Pagination) ([]*model.Doctor, int, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, page model.Pagination) ([]*model.Patient, int, error)
	}

	AppointmentRepository interface {
		FindByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// FindConflicting returns the non-cancelled appointment holding
		// (key, date, slot) for the given kind, or nil when the slot is
		// free. excludeID skips the appointment being rescheduled.
		FindConflicting(ctx context.Context, kind model.ConflictKind, key uuid.UUID, date time.Time, slot int, excludeID *uuid.UUID) (*model.Appointment, error)
		Insert(ctx context.Context, appointment *model.Appointment) error
		Update(ctx context.Context, appointment *model.Appointment) error
		// List returns one page of matches and the total number of matches.
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error)
		ListForRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]*model.Appointment, error)
		InsertDocument(ctx context.Context, doc *model.AppointmentDocument) error
		ListDocuments(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentDocument, error)
		DeleteDocument(ctx context.Context, appointmentID, documentID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending marks up to limit due events as processing and
		// returns them. Concurrent workers never claim the same event.
		// Events left in processing for longer than lease are claimed
		// again; a non-positive lease never reclaims.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records the failure. A non-nil retryAt puts the event
		// back in the pending queue; nil parks it as failed.
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Tx is the set of repositories bound to one unit of work.
	Tx interface {
		Rooms() RoomRepository
		Services() ServiceRepository
		Devices() DeviceRepository
		Doctors() DoctorRepository
		Patients() PatientRepository
		Appointments() AppointmentRepository
		Outbox() OutboxRepository
	}

	// Store exposes repositories outside a transaction and runs fn inside
	// one. WithTx commits when fn returns nil and rolls back otherwise.
	// Booking transactions must be isolated from each other so that the
	// conflict check and the write are atomic.
	Store interface {
		Tx
		WithTx(ctx context.Context, fn func(tx Tx) error) error
		Ping(ctx context.Context) error
	}
)
