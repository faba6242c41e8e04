// Package worker holds the background jobs run by cmd/worker.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

// Notifier emails patients about appointment lifecycle events, and
// administrators and doctors about doctor registrations, as the broker
// delivers them.
type Notifier struct {
	store    repository.Tx
	calendar *scheduling.Calendar
	sender   email.Sender
	logger   *logger.Logger
	admins   []string
}

type NotifierOption func(*Notifier)

// WithAdmins sets the addresses that review doctor registrations.
func WithAdmins(addrs ...string) NotifierOption {
	return func(n *Notifier) { n.admins = append([]string(nil), addrs...) }
}

func NewNotifier(store repository.Tx, calendar *scheduling.Calendar, sender email.Sender, log *logger.Logger, opts ...NotifierOption) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	n := &Notifier{store: store, calendar: calendar, sender: sender, logger: log}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run subscribes to every appointment and doctor event type and handles
// messages until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, broker messaging.Broker) error {
	eventTypes := append(append([]string(nil), model.AppointmentEventTypes...), model.DoctorEventTypes...)

	var wg sync.WaitGroup
	for _, eventType := range eventTypes {
		msgs, err := broker.Subscribe(ctx, eventType)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}

		wg.Add(1)
		go func(eventType string, msgs <-chan []byte) {
			defer wg.Done()
			for payload := range msgs {
				if err := n.Handle(ctx, eventType, payload); err != nil {
					n.logger.Error(err, "Failed to handle event", "event_type", eventType)
				}
			}
		}(eventType, msgs)
	}

	n.logger.Info("Notifier subscribed", "event_types", len(eventTypes))
	wg.Wait()
	return nil
}

// Handle sends the email for one event. Patients without an email
// address are skipped.
func (n *Notifier) Handle(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case model.EventDoctorRequested, model.EventDoctorVerified:
		return n.handleDoctor(ctx, eventType, payload)
	}

	var event model.AppointmentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	patient, err := n.store.Patients().Get(ctx, event.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	if patient.Email == "" {
		n.logger.Debug("patient has no email, skipping", "patient_id", patient.ID.String())
		return nil
	}

	notice, err := n.notice(ctx, event, patient)
	if err != nil {
		return err
	}

	subject, body, err := email.RenderAppointment(eventType, notice)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, patient.Email, subject, body); err != nil {
		return err
	}

	n.logger.Info("appointment email sent",
		"appointment_id", event.AppointmentID.String(),
		"event_type", eventType)
	return nil
}

func (n *Notifier) notice(ctx context.Context, event model.AppointmentEvent, patient *model.Patient) (email.AppointmentNotice, error) {
	notice := email.AppointmentNotice{
		PatientName: patient.FullName,
		Date:        event.Date,
		State:       event.State,
		Reason:      event.Reason,
	}

	room, err := n.store.Rooms().Get(ctx, event.RoomID)
	if err != nil {
		return notice, fmt.Errorf("failed to load room: %w", err)
	}
	notice.RoomCode = room.Code

	if event.DoctorID != nil {
		doctor, err := n.store.Doctors().Get(ctx, *event.DoctorID)
		if err != nil {
			return notice, fmt.Errorf("failed to load doctor: %w", err)
		}
		notice.DoctorName = doctor.FullName
	}

	// Opening hours may have changed since the booking; fall back to the
	// slot number rather than dropping the email.
	notice.Start = fmt.Sprintf("slot %d", event.Slot)
	if date, err := model.ParseDate(event.Date); err == nil {
		if start, end, err := n.calendar.SlotRange(date, event.Slot); err == nil {
			notice.Start = start.Format("15:04")
			notice.End = end.Format("15:04")
		}
	}
	return notice, nil
}

// handleDoctor sends registration requests to the administrators and the
// approval to the doctor.
func (n *Notifier) handleDoctor(ctx context.Context, eventType string, payload []byte) error {
	var event model.DoctorEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	recipients := n.admins
	if eventType == model.EventDoctorVerified {
		recipients = nil
		if event.Email != "" {
			recipients = []string{event.Email}
		}
	}
	if len(recipients) == 0 {
		n.logger.Debug("no recipients, skipping", "event_type", eventType, "doctor_id", event.DoctorID.String())
		return nil
	}

	subject, body, err := email.RenderDoctor(eventType, email.DoctorNotice{
		DoctorName: event.FullName,
		Email:      event.Email,
		Major:      event.Major,
	})
	if err != nil {
		return err
	}
	for _, to := range recipients {
		if err := n.sender.Send(ctx, to, subject, body); err != nil {
			return err
		}
	}

	n.logger.Info("doctor email sent",
		"doctor_id", event.DoctorID.String(),
		"event_type", eventType,
		"recipients", len(recipients))
	return nil
}
