// Package booking decides whether a proposed appointment may be booked.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Request is a candidate booking. ExcludeID names the appointment being
// moved, so that it does not conflict with itself. Current is the date and
// slot that appointment already holds; staying there is never rejected as
// a past booking.
type Request struct {
	RoomID    uuid.UUID
	ServiceID uuid.UUID
	DoctorID  *uuid.UUID
	Date      time.Time
	Slot      int
	ExcludeID *uuid.UUID
	Current   *Placement
}

type Placement struct {
	Date time.Time
	Slot int
}

// SlotModel is the part of scheduling.Calendar the validator depends on.
type SlotModel interface {
	Contains(date time.Time, slot int) bool
	Today(now time.Time) time.Time
}

type Validator struct {
	slots          SlotModel
	allowPastDates bool
	now            func() time.Time
}

type Option func(*Validator)

// AllowPastDates disables the rejection of dates before today.
func AllowPastDates(allow bool) Option {
	return func(v *Validator) { v.allowPastDates = allow }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func NewValidator(slots SlotModel, opts ...Option) *Validator {
	v := &Validator{slots: slots, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check returns nil when req may be booked, and otherwise the reason it is
// rejected: ErrInvalidSlot, ErrNotFound, ErrDoctorUnverified,
// ErrRoomUnsuitable, ErrRoomConflict or ErrDoctorConflict. Repository
// failures are returned as they are.
//
// Check only reads. It must run on the same transaction as the write it
// guards, or a concurrent booking can slip between the two.
func (v *Validator) Check(ctx context.Context, tx repository.Tx, req Request) error {
	date := model.DateOf(req.Date)

	if !v.slots.Contains(date, req.Slot) {
		return apperrors.InvalidSlot(fmt.Sprintf("slot %d is not available on %s", req.Slot, date.Format(model.DateLayout)))
	}
	stays := req.Current != nil && req.Current.Slot == req.Slot && model.DateOf(req.Current.Date).Equal(date)
	if !v.allowPastDates && !stays && date.Before(v.slots.Today(v.now())) {
		return apperrors.InvalidSlot(fmt.Sprintf("%s is in the past", date.Format(model.DateLayout)))
	}

	if _, err := tx.Rooms().Get(ctx, req.RoomID); err != nil {
		return err
	}
	if _, err := tx.Services().Get(ctx, req.ServiceID); err != nil {
		return err
	}
	if req.DoctorID != nil {
		doctor, err := tx.Doctors().Get(ctx, *req.DoctorID)
		if err != nil {
			return err
		}
		if !doctor.Verified {
			return apperrors.ErrDoctorUnverified
		}
	}

	if err := v.checkDevices(ctx, tx, req.ServiceID, req.RoomID); err != nil {
		return err
	}

	taken, err := tx.Appointments().FindConflicting(ctx, model.ConflictRoom, req.RoomID, date, req.Slot, req.ExcludeID)
	if err != nil {
		return err
	}
	if taken != nil {
		return apperrors.ErrRoomConflict
	}

	if req.DoctorID != nil {
		taken, err := tx.Appointments().FindConflicting(ctx, model.ConflictDoctor, *req.DoctorID, date, req.Slot, req.ExcludeID)
		if err != nil {
			return err
		}
		if taken != nil {
			return apperrors.ErrDoctorConflict
		}
	}

	return nil
}

// checkDevices requires every device the service depends on to be
// installed in the room and active.
func (v *Validator) checkDevices(ctx context.Context, tx repository.Tx, serviceID, roomID uuid.UUID) error {
	required, err := tx.Services().RequiredDevices(ctx, serviceID)
	if err != nil {
		return err
	}
	for _, d := range required {
		if d.RoomID != roomID || !d.Active {
			return apperrors.Wrap(apperrors.ErrRoomUnsuitable, fmt.Errorf("device %s (%s) unavailable", d.Name, d.ID))
		}
	}
	return nil
}

// Outcome labels a Check result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, apperrors.ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, apperrors.ErrRoomConflict):
		return "room_conflict"
	case errors.Is(err, apperrors.ErrDoctorConflict):
		return "doctor_conflict"
	case errors.Is(err, apperrors.ErrDoctorUnverified):
		return "doctor_unverified"
	case errors.Is(err, apperrors.ErrRoomUnsuitable):
		return "room_unsuitable"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
