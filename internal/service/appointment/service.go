// Package appointment implements the appointment lifecycle: booking,
// rescheduling and the requested -> confirmed -> completed state machine
// with cancellation.
package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type CreateRequest struct {
	PatientID uuid.UUID
	RoomID    uuid.UUID
	ServiceID uuid.UUID
	DoctorID  *uuid.UUID
	Date      time.Time
	Slot      int
	Content   string
}

type DocumentRequest struct {
	FilePath string
	Tag      model.DocumentTag
	Title    string
}

type Service struct {
	store     repository.Store
	validator *booking.Validator
	calendar  *scheduling.Calendar
	events    *event.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewService wires the lifecycle manager. metrics may be nil.
func NewService(
	store repository.Store,
	validator *booking.Validator,
	calendar *scheduling.Calendar,
	events *event.Service,
	metrics *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     store,
		validator: validator,
		calendar:  calendar,
		events:    events,
		metrics:   metrics,
		logger:    log,
	}
}

// CreateAppointment books a new appointment in the requested state.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*model.Appointment, error) {
	apt := &model.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		RoomID:    req.RoomID,
		ServiceID: req.ServiceID,
		Date:      model.DateOf(req.Date),
		Slot:      req.Slot,
		State:     model.AppointmentStateRequested,
		Content:   req.Content,
	}

	err := s.withTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Patients().Get(ctx, req.PatientID); err != nil {
			return err
		}
		if err := s.check(ctx, tx, booking.Request{
			RoomID:    req.RoomID,
			ServiceID: req.ServiceID,
			DoctorID:  req.DoctorID,
			Date:      apt.Date,
			Slot:      req.Slot,
		}); err != nil {
			return err
		}
		if err := tx.Appointments().Insert(ctx, apt); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventAppointmentCreated, apt, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.recordChange(apt.State)
	s.logger.Info("appointment created",
		"appointment_id", apt.ID.String(),
		"room_id", apt.RoomID.String(),
		"date", apt.Date.Format(model.DateLayout),
		"slot", apt.Slot)
	return apt, nil
}

// RescheduleAppointment moves an open appointment to another date and
// slot in the same room. Moving it onto its own current slot is allowed.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, date time.Time, slot int) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		apt, err = tx.Appointments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if apt.State.IsTerminal() {
			return apperrors.InvalidState(fmt.Sprintf("cannot reschedule a %s appointment", apt.State))
		}

		date = model.DateOf(date)
		if err := s.check(ctx, tx, booking.Request{
			RoomID:    apt.RoomID,
			ServiceID: apt.ServiceID,
			DoctorID:  apt.DoctorID,
			Date:      date,
			Slot:      slot,
			ExcludeID: &apt.ID,
			Current:   &booking.Placement{Date: apt.Date, Slot: apt.Slot},
		}); err != nil {
			return err
		}

		apt.Date = date
		apt.Slot = slot
		if err := tx.Appointments().Update(ctx, apt); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventAppointmentRescheduled, apt, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", apt.ID.String(),
		"date", apt.Date.Format(model.DateLayout),
		"slot", apt.Slot)
	return apt, nil
}

// AssignDoctor sets or replaces the doctor of an open appointment. The
// new doctor must be verified and free at the appointment's slot.
func (s *Service) AssignDoctor(ctx context.Context, id, doctorID uuid.UUID) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		apt, err = tx.Appointments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if apt.State.IsTerminal() {
			return apperrors.InvalidState(fmt.Sprintf("cannot reassign a %s appointment", apt.State))
		}

		if err := s.check(ctx, tx, booking.Request{
			RoomID:    apt.RoomID,
			ServiceID: apt.ServiceID,
			DoctorID:  &doctorID,
			Date:      apt.Date,
			Slot:      apt.Slot,
			ExcludeID: &apt.ID,
			Current:   &booking.Placement{Date: apt.Date, Slot: apt.Slot},
		}); err != nil {
			return err
		}

		apt.DoctorID = &doctorID
		if err := tx.Appointments().Update(ctx, apt); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventAppointmentReassigned, apt, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign doctor: %w", err)
	}
	return apt, nil
}

// CancelAppointment frees the appointment's slot. Completed and already
// cancelled appointments cannot be cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.transition(ctx, id, model.AppointmentStateCancelled, model.EventAppointmentCancelled, func(apt *model.Appointment) {
		if reason != "" {
			apt.CancelReason = &reason
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.transition(ctx, id, model.AppointmentStateConfirmed, model.EventAppointmentConfirmed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.transition(ctx, id, model.AppointmentStateCompleted, model.EventAppointmentCompleted, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to complete appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to model.AppointmentState, eventType string, mutate func(*model.Appointment)) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		apt, err = tx.Appointments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !apt.State.CanTransitionTo(to) {
			return apperrors.InvalidState(fmt.Sprintf("cannot move appointment from %s to %s", apt.State, to))
		}

		apt.State = to
		if mutate != nil {
			mutate(apt)
		}
		if err := tx.Appointments().Update(ctx, apt); err != nil {
			return err
		}

		reason := ""
		if apt.CancelReason != nil {
			reason = *apt.CancelReason
		}
		return s.emit(ctx, tx, eventType, apt, reason)
	})
	if err != nil {
		return nil, err
	}

	s.recordChange(to)
	s.logger.Info("appointment state changed", "appointment_id", id.String(), "state", string(to))
	return apt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.store.Appointments().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	appointments, total, err := s.store.Appointments().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func (s *Service) AttachDocument(ctx context.Context, appointmentID uuid.UUID, req DocumentRequest) (*model.AppointmentDocument, error) {
	if !req.Tag.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown document tag %q", req.Tag), nil)
	}

	doc := &model.AppointmentDocument{
		AppointmentID: appointmentID,
		FilePath:      req.FilePath,
		Tag:           req.Tag,
		Title:         req.Title,
	}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Appointments().FindByID(ctx, appointmentID); err != nil {
			return err
		}
		return tx.Appointments().InsertDocument(ctx, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach document: %w", err)
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentDocument, error) {
	if _, err := s.store.Appointments().FindByID(ctx, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	docs, err := s.store.Appointments().ListDocuments(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (s *Service) RemoveDocument(ctx context.Context, appointmentID, documentID uuid.UUID) error {
	if err := s.store.Appointments().DeleteDocument(ctx, appointmentID, documentID); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	return nil
}

// RoomAvailability lists every slot of date for the room and marks the
// ones held by a non-cancelled appointment.
func (s *Service) RoomAvailability(ctx context.Context, roomID uuid.UUID, date time.Time) ([]model.SlotAvailability, error) {
	if _, err := s.store.Rooms().Get(ctx, roomID); err != nil {
		return nil, fmt.Errorf("failed to get room availability: %w", err)
	}

	booked, err := s.store.Appointments().ListForRoomDate(ctx, roomID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get room availability: %w", err)
	}
	held := make(map[int]uuid.UUID, len(booked))
	for _, a := range booked {
		held[a.Slot] = a.ID
	}

	slots := s.calendar.SlotsForDate(date)
	out := make([]model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		start, end, err := s.calendar.SlotRange(date, slot)
		if err != nil {
			return nil, err
		}
		sa := model.SlotAvailability{Slot: slot, Start: start, End: end, Available: true}
		if id, ok := held[slot]; ok {
			id := id
			sa.Available = false
			sa.AppointmentID = &id
		}
		out = append(out, sa)
	}
	return out, nil
}

func (s *Service) withTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.BookingTxDuration)
		defer timer.ObserveDuration()
	}
	return s.store.WithTx(ctx, fn)
}

func (s *Service) check(ctx context.Context, tx repository.Tx, req booking.Request) error {
	err := s.validator.Check(ctx, tx, req)
	if s.metrics != nil {
		s.metrics.BookingDecisions.WithLabelValues(booking.Outcome(err)).Inc()
	}
	if err != nil {
		s.logger.Debug("booking rejected",
			"room_id", req.RoomID.String(),
			"date", req.Date.Format(model.DateLayout),
			"slot", req.Slot,
			"reason", err.Error())
	}
	return err
}

func (s *Service) emit(ctx context.Context, tx repository.Tx, eventType string, apt *model.Appointment, reason string) error {
	return s.events.Emit(ctx, tx.Outbox(), eventType, model.AppointmentEvent{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		RoomID:        apt.RoomID,
		Date:          apt.Date.Format(model.DateLayout),
		Slot:          apt.Slot,
		State:         apt.State,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *Service) recordChange(state model.AppointmentState) {
	if s.metrics != nil {
		s.metrics.LifecycleChanges.WithLabelValues(string(state)).Inc()
	}
}
