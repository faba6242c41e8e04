package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type appointmentRepo struct{ v view }

func (r appointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	defer r.v.lock()()
	a, ok := r.v.s.st.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	out := copyAppointment(a)
	return &out, nil
}

func (r appointmentRepo) FindConflicting(ctx context.Context, kind model.ConflictKind, key uuid.UUID, date time.Time, slot int, excludeID *uuid.UUID) (*model.Appointment, error) {
	defer r.v.lock()()

	date = model.DateOf(date)
	for _, a := range r.v.s.st.sortedAppointments() {
		if a.State == model.AppointmentStateCancelled || a.Slot != slot || !a.Date.Equal(date) {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		switch kind {
		case model.ConflictRoom:
			if a.RoomID != key {
				continue
			}
		case model.ConflictDoctor:
			if a.DoctorID == nil || *a.DoctorID != key {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown conflict kind %q", kind)
		}
		out := copyAppointment(a)
		return &out, nil
	}
	return nil, nil
}

func (r appointmentRepo) Insert(ctx context.Context, appointment *model.Appointment) error {
	defer r.v.lock()()
	st := r.v.s.st

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if _, ok := st.appointments[appointment.ID]; ok {
		return apperrors.BadRequest("appointment already exists", nil)
	}
	appointment.Date = model.DateOf(appointment.Date)
	if err := st.checkAppointment(*appointment); err != nil {
		return err
	}

	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	st.appointments[appointment.ID] = copyAppointment(*appointment)
	return nil
}

func (r appointmentRepo) Update(ctx context.Context, appointment *model.Appointment) error {
	defer r.v.lock()()
	st := r.v.s.st

	existing, ok := st.appointments[appointment.ID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	appointment.Date = model.DateOf(appointment.Date)
	// Columns not written by the SQL update stay as stored.
	appointment.PatientID = existing.PatientID
	appointment.RoomID = existing.RoomID
	appointment.ServiceID = existing.ServiceID
	appointment.CreatedAt = existing.CreatedAt
	if err := st.checkAppointment(*appointment); err != nil {
		return err
	}

	appointment.UpdatedAt = time.Now().UTC()
	st.appointments[appointment.ID] = copyAppointment(*appointment)
	return nil
}

func (r appointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	defer r.v.lock()()

	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	out := make([]*model.Appointment, 0)
	for _, a := range r.v.s.st.sortedAppointments() {
		if filters.RoomID != nil && a.RoomID != *filters.RoomID {
			continue
		}
		if filters.DoctorID != nil && (a.DoctorID == nil || *a.DoctorID != *filters.DoctorID) {
			continue
		}
		if filters.PatientID != nil && a.PatientID != *filters.PatientID {
			continue
		}
		if filters.State != "" && a.State != filters.State {
			continue
		}
		if filters.From != nil && a.Date.Before(model.DateOf(*filters.From)) {
			continue
		}
		if filters.To != nil && a.Date.After(model.DateOf(*filters.To)) {
			continue
		}
		a := copyAppointment(a)
		out = append(out, &a)
	}
	return paginate(out, filters.Pagination), len(out), nil
}

func (r appointmentRepo) ListForRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	defer r.v.lock()()

	date = model.DateOf(date)
	out := make([]*model.Appointment, 0)
	for _, a := range r.v.s.st.sortedAppointments() {
		if a.RoomID != roomID || !a.Date.Equal(date) || a.State == model.AppointmentStateCancelled {
			continue
		}
		a := copyAppointment(a)
		out = append(out, &a)
	}
	return out, nil
}

func (r appointmentRepo) InsertDocument(ctx context.Context, doc *model.AppointmentDocument) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.appointments[doc.AppointmentID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now().UTC()
	st.documents[doc.ID] = *doc
	return nil
}

func (r appointmentRepo) ListDocuments(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentDocument, error) {
	defer r.v.lock()()

	docs := make([]*model.AppointmentDocument, 0)
	for _, d := range r.v.s.st.documents {
		if d.AppointmentID != appointmentID {
			continue
		}
		d := d
		docs = append(docs, &d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

func (r appointmentRepo) DeleteDocument(ctx context.Context, appointmentID, documentID uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	d, ok := st.documents[documentID]
	if !ok || d.AppointmentID != appointmentID {
		return apperrors.NotFound("appointment document", nil)
	}
	delete(st.documents, documentID)
	return nil
}

// checkAppointment applies the foreign keys and the two partial unique
// indexes of the appointments table.
func (s *state) checkAppointment(a model.Appointment) error {
	if _, ok := s.rooms[a.RoomID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	if _, ok := s.patients[a.PatientID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	if _, ok := s.services[a.ServiceID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	if a.DoctorID != nil {
		if _, ok := s.doctors[*a.DoctorID]; !ok {
			return apperrors.BadRequest("record is referenced by or references a missing record", nil)
		}
	}
	if a.Slot < 0 || !a.State.Valid() {
		return apperrors.BadRequest("appointment violates a check constraint", nil)
	}

	if a.State == model.AppointmentStateCancelled {
		return nil
	}
	for id, other := range s.appointments {
		if id == a.ID || other.State == model.AppointmentStateCancelled {
			continue
		}
		if other.Slot != a.Slot || !other.Date.Equal(a.Date) {
			continue
		}
		if other.RoomID == a.RoomID {
			return apperrors.ErrRoomConflict
		}
		if a.DoctorID != nil && other.DoctorID != nil && *a.DoctorID == *other.DoctorID {
			return apperrors.ErrDoctorConflict
		}
	}
	return nil
}

func (s *state) deleteAppointment(id uuid.UUID) {
	delete(s.appointments, id)
	for docID, d := range s.documents {
		if d.AppointmentID == id {
			delete(s.documents, docID)
		}
	}
}

// sortedAppointments returns stored appointments ordered by date and slot,
// so lookups are deterministic.
func (s *state) sortedAppointments() []model.Appointment {
	out := make([]model.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func copyAppointment(a model.Appointment) model.Appointment {
	if a.DoctorID != nil {
		id := *a.DoctorID
		a.DoctorID = &id
	}
	if a.CancelReason != nil {
		reason := *a.CancelReason
		a.CancelReason = &reason
	}
	return a
}
