package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

type env struct {
	store     *memory.Store
	validator *Validator
	r1, r2    *model.Room
	service   *model.Service
	d1, d2    *model.Doctor
	patient   *model.Patient
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	weekly := make(map[time.Weekday]scheduling.Hours)
	for d := time.Monday; d <= time.Friday; d++ {
		weekly[d] = scheduling.Hours{Open: 8 * time.Hour, Close: 16 * time.Hour}
	}
	cal, err := scheduling.NewCalendar(scheduling.Config{SlotDuration: time.Hour, Weekly: weekly})
	require.NoError(t, err)

	s := memory.NewStore()
	e := &env{
		store: s,
		validator: NewValidator(cal, WithClock(func() time.Time {
			return time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
		})),
		r1:      &model.Room{Code: "R1", Type: model.RoomTypeGeneral},
		r2:      &model.Room{Code: "R2", Type: model.RoomTypeXRay},
		service: &model.Service{Code: "CHECK", Name: "Checkup"},
		d1:      &model.Doctor{FullName: "D1", Verified: true},
		d2:      &model.Doctor{FullName: "D2", Verified: true},
		patient: &model.Patient{FullName: "P1"},
	}
	require.NoError(t, s.Rooms().Create(ctx, e.r1))
	require.NoError(t, s.Rooms().Create(ctx, e.r2))
	require.NoError(t, s.Services().Create(ctx, e.service))
	require.NoError(t, s.Doctors().Create(ctx, e.d1))
	require.NoError(t, s.Doctors().Create(ctx, e.d2))
	require.NoError(t, s.Patients().Create(ctx, e.patient))
	return e
}

func (e *env) book(t *testing.T, room *model.Room, doctor *model.Doctor, slot int) *model.Appointment {
	t.Helper()
	a := &model.Appointment{
		PatientID: e.patient.ID,
		RoomID:    room.ID,
		ServiceID: e.service.ID,
		Date:      day,
		Slot:      slot,
		State:     model.AppointmentStateRequested,
	}
	if doctor != nil {
		a.DoctorID = &doctor.ID
	}
	require.NoError(t, e.store.Appointments().Insert(context.Background(), a))
	return a
}

func (e *env) request(room *model.Room, doctor *model.Doctor, slot int) Request {
	req := Request{RoomID: room.ID, ServiceID: e.service.ID, Date: day, Slot: slot}
	if doctor != nil {
		req.DoctorID = &doctor.ID
	}
	return req
}

func TestCheckScenario(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	require.NoError(t, e.validator.Check(ctx, e.store, e.request(e.r1, e.d1, 3)))
	e.book(t, e.r1, e.d1, 3)

	err := e.validator.Check(ctx, e.store, e.request(e.r1, e.d2, 3))
	assert.True(t, errors.Is(err, apperrors.ErrRoomConflict), "got %v", err)

	err = e.validator.Check(ctx, e.store, e.request(e.r2, e.d1, 3))
	assert.True(t, errors.Is(err, apperrors.ErrDoctorConflict), "got %v", err)

	assert.NoError(t, e.validator.Check(ctx, e.store, e.request(e.r2, e.d2, 3)))
	assert.NoError(t, e.validator.Check(ctx, e.store, e.request(e.r1, e.d1, 4)))
}

func TestCheckRejectsSlotsOutsideTheDay(t *testing.T) {
	e := setup(t)

	err := e.validator.Check(context.Background(), e.store, e.request(e.r1, nil, 99))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidSlot))

	req := e.request(e.r1, nil, 0)
	req.Date = time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC) // Saturday
	err = e.validator.Check(context.Background(), e.store, req)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidSlot))
}

func TestCheckPastDates(t *testing.T) {
	e := setup(t)
	req := e.request(e.r1, nil, 0)
	req.Date = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	err := e.validator.Check(context.Background(), e.store, req)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidSlot))

	AllowPastDates(true)(e.validator)
	assert.NoError(t, e.validator.Check(context.Background(), e.store, req))
}

func TestCheckExcludesTheAppointmentItself(t *testing.T) {
	e := setup(t)
	a := e.book(t, e.r1, e.d1, 3)

	req := e.request(e.r1, e.d1, 3)
	req.ExcludeID = &a.ID
	assert.NoError(t, e.validator.Check(context.Background(), e.store, req))
}

func TestCheckKeepsCurrentPlacementOfPastAppointment(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	past := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	a := e.book(t, e.r1, e.d1, 3)

	req := e.request(e.r1, e.d1, 3)
	req.Date = past
	req.ExcludeID = &a.ID
	req.Current = &Placement{Date: past, Slot: 3}
	assert.NoError(t, e.validator.Check(ctx, e.store, req))

	req.Slot = 4
	assert.True(t, errors.Is(e.validator.Check(ctx, e.store, req), apperrors.ErrInvalidSlot))
}

func TestCheckCancelledAppointmentsFreeTheSlot(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	a := e.book(t, e.r1, e.d1, 3)

	a.State = model.AppointmentStateCancelled
	require.NoError(t, e.store.Appointments().Update(ctx, a))

	assert.NoError(t, e.validator.Check(ctx, e.store, e.request(e.r1, e.d1, 3)))
}

func TestCheckReferences(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	req := e.request(e.r1, nil, 1)
	req.RoomID = uuid.New()
	assert.True(t, errors.Is(e.validator.Check(ctx, e.store, req), apperrors.ErrNotFound))

	req = e.request(e.r1, nil, 1)
	req.ServiceID = uuid.New()
	assert.True(t, errors.Is(e.validator.Check(ctx, e.store, req), apperrors.ErrNotFound))

	ghost := uuid.New()
	req = e.request(e.r1, nil, 1)
	req.DoctorID = &ghost
	assert.True(t, errors.Is(e.validator.Check(ctx, e.store, req), apperrors.ErrNotFound))

	unverified := &model.Doctor{FullName: "New"}
	require.NoError(t, e.store.Doctors().Create(ctx, unverified))
	err := e.validator.Check(ctx, e.store, e.request(e.r1, unverified, 1))
	assert.True(t, errors.Is(err, apperrors.ErrDoctorUnverified))
}

func TestCheckRequiredDevices(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	xray := &model.Device{RoomID: e.r2.ID, Name: "X-ray unit", Active: true}
	require.NoError(t, e.store.Devices().Create(ctx, xray))
	require.NoError(t, e.store.Services().SetRequiredDevices(ctx, e.service.ID, []uuid.UUID{xray.ID}))

	err := e.validator.Check(ctx, e.store, e.request(e.r1, nil, 1))
	assert.True(t, errors.Is(err, apperrors.ErrRoomUnsuitable), "got %v", err)
	assert.NoError(t, e.validator.Check(ctx, e.store, e.request(e.r2, nil, 1)))

	xray.Active = false
	require.NoError(t, e.store.Devices().Update(ctx, xray))
	err = e.validator.Check(ctx, e.store, e.request(e.r2, nil, 1))
	assert.True(t, errors.Is(err, apperrors.ErrRoomUnsuitable))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "admitted", Outcome(nil))
	assert.Equal(t, "room_conflict", Outcome(apperrors.ErrRoomConflict))
	assert.Equal(t, "invalid_slot", Outcome(apperrors.InvalidSlot("x")))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
