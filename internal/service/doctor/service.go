package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service interface {
	CreateDoctor(ctx context.Context, doctor *model.Doctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	UpdateDoctor(ctx context.Context, doctor *model.Doctor) error
	ListDoctors(ctx context.Context, page model.Pagination) ([]*model.Doctor, int, error)

	// VerifyDoctor accepts a pending doctor so they can be booked.
	VerifyDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
}

type service struct {
	store  repository.Store
	events *event.Service
}

func NewService(store repository.Store, events *event.Service) Service {
	return &service{store: store, events: events}
}

// CreateDoctor registers a doctor as unverified and asks administrators
// to review the request. The ID may be preset to the user account the
// doctor belongs to.
func (s *service) CreateDoctor(ctx context.Context, doctor *model.Doctor) error {
	if strings.TrimSpace(doctor.FullName) == "" {
		return apperrors.BadRequest("full name is required", nil)
	}
	doctor.Verified = false

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Doctors().Create(ctx, doctor); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventDoctorRequested, doctor)
	})
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (s *service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.store.Doctors().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doctor, nil
}

// UpdateDoctor changes profile fields. Verification is only granted
// through VerifyDoctor, so the stored flag is kept.
func (s *service) UpdateDoctor(ctx context.Context, doctor *model.Doctor) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.Doctors().Get(ctx, doctor.ID)
		if err != nil {
			return err
		}
		doctor.Verified = existing.Verified
		return tx.Doctors().Update(ctx, doctor)
	})
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	return nil
}

func (s *service) ListDoctors(ctx context.Context, page model.Pagination) ([]*model.Doctor, int, error) {
	doctors, total, err := s.store.Doctors().List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, total, nil
}

func (s *service) VerifyDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor *model.Doctor
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		doctor, err = tx.Doctors().Get(ctx, id)
		if err != nil {
			return err
		}
		if doctor.Verified {
			return apperrors.InvalidState("doctor is already verified")
		}

		doctor.Verified = true
		if err := tx.Doctors().Update(ctx, doctor); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventDoctorVerified, doctor)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify doctor: %w", err)
	}
	return doctor, nil
}

func (s *service) emit(ctx context.Context, tx repository.Tx, eventType string, doctor *model.Doctor) error {
	return s.events.Emit(ctx, tx.Outbox(), eventType, model.DoctorEvent{
		DoctorID:   doctor.ID,
		FullName:   doctor.FullName,
		Email:      doctor.Email,
		Major:      doctor.Major,
		OccurredAt: time.Now().UTC(),
	})
}
