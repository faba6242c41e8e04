package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type fixture struct {
	store   *Store
	room    *model.Room
	service *model.Service
	patient *model.Patient
	doctor  *model.Doctor
	date    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := NewStore()

	room := &model.Room{Code: "R1", Type: model.RoomTypeGeneral}
	require.NoError(t, s.Rooms().Create(ctx, room))
	service := &model.Service{Code: "CLEAN", Name: "Cleaning"}
	require.NoError(t, s.Services().Create(ctx, service))
	patient := &model.Patient{FullName: "Jane Roe"}
	require.NoError(t, s.Patients().Create(ctx, patient))
	doctor := &model.Doctor{FullName: "Dr. Who", Verified: true}
	require.NoError(t, s.Doctors().Create(ctx, doctor))

	return &fixture{
		store:   s,
		room:    room,
		service: service,
		patient: patient,
		doctor:  doctor,
		date:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) appointment(slot int) *model.Appointment {
	doctorID := f.doctor.ID
	return &model.Appointment{
		DoctorID:  &doctorID,
		PatientID: f.patient.ID,
		RoomID:    f.room.ID,
		ServiceID: f.service.ID,
		Date:      f.date,
		Slot:      slot,
		State:     model.AppointmentStateRequested,
	}
}

func TestInsertEnforcesRoomUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()

	require.NoError(t, repo.Insert(ctx, f.appointment(3)))

	dup := f.appointment(3)
	dup.DoctorID = nil
	err := repo.Insert(ctx, dup)
	assert.True(t, errors.Is(err, apperrors.ErrRoomConflict), "got %v", err)
}

func TestInsertEnforcesDoctorUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &model.Room{Code: "R2", Type: model.RoomTypeSurgery}
	require.NoError(t, f.store.Rooms().Create(ctx, other))

	require.NoError(t, f.store.Appointments().Insert(ctx, f.appointment(3)))

	a := f.appointment(3)
	a.RoomID = other.ID
	err := f.store.Appointments().Insert(ctx, a)
	assert.True(t, errors.Is(err, apperrors.ErrDoctorConflict), "got %v", err)
}

func TestCancelledAppointmentsDoNotHoldSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()

	first := f.appointment(3)
	require.NoError(t, repo.Insert(ctx, first))

	first.State = model.AppointmentStateCancelled
	require.NoError(t, repo.Update(ctx, first))

	conflict, err := repo.FindConflicting(ctx, model.ConflictRoom, f.room.ID, f.date, 3, nil)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	assert.NoError(t, repo.Insert(ctx, f.appointment(3)))
}

func TestFindConflictingExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()

	a := f.appointment(2)
	require.NoError(t, repo.Insert(ctx, a))

	got, err := repo.FindConflicting(ctx, model.ConflictDoctor, f.doctor.ID, f.date, 2, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	got, err = repo.FindConflicting(ctx, model.ConflictDoctor, f.doctor.ID, f.date, 2, &a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Appointments().Insert(ctx, f.appointment(1)); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	list, _, err := f.store.Appointments().List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWithTxCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.Appointments().Insert(ctx, f.appointment(1))
	})
	require.NoError(t, err)

	list, _, err := f.store.Appointments().List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRoomDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.appointment(0)
	require.NoError(t, f.store.Appointments().Insert(ctx, a))
	require.NoError(t, f.store.Appointments().InsertDocument(ctx, &model.AppointmentDocument{
		AppointmentID: a.ID,
		FilePath:      "docs/xray.png",
		Tag:           model.DocumentTagXRay,
	}))

	require.NoError(t, f.store.Rooms().Delete(ctx, f.room.ID))

	_, err := f.store.Appointments().FindByID(ctx, a.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	docs, err := f.store.Appointments().ListDocuments(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestServiceDeleteRestrictedByAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Appointments().Insert(ctx, f.appointment(0)))

	err := f.store.Services().Delete(ctx, f.service.ID)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.appointment(4)
	require.NoError(t, f.store.Appointments().Insert(ctx, a))

	got, err := f.store.Appointments().FindByID(ctx, a.ID)
	require.NoError(t, err)
	got.Slot = 5
	*got.DoctorID = uuid.New()

	again, err := f.store.Appointments().FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Slot)
	assert.Equal(t, f.doctor.ID, *again.DoctorID)
}

func TestOutboxClaimAndRetry(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Outbox()

	event := &model.OutboxEvent{EventType: model.EventAppointmentCreated, Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Create(ctx, event))

	claimed, err := repo.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, model.OutboxStatusProcessing, claimed[0].Status)

	claimed, err = repo.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	time.Sleep(2 * time.Millisecond)
	claimed, err = repo.ClaimPending(ctx, 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "expired lease is claimed again")

	later := time.Now().Add(time.Hour)
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "smtp down", &later))
	claimed, err = repo.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed, "retry is not due yet")

	past := time.Now().Add(-time.Second)
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "smtp down", &past))
	claimed, err = repo.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 2, claimed[0].RetryCount)

	require.NoError(t, repo.MarkProcessed(ctx, event.ID))
	n, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
