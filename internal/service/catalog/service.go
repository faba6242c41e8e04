// Package catalog manages the clinic's rooms, services and devices.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type CatalogServicer interface {
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error)
	UpdateRoom(ctx context.Context, room *model.Room) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	ListRooms(ctx context.Context, page model.Pagination) ([]*model.Room, int, error)

	CreateService(ctx context.Context, service *model.Service) error
	GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
	UpdateService(ctx context.Context, service *model.Service) error
	DeleteService(ctx context.Context, id uuid.UUID) error
	ListServices(ctx context.Context, page model.Pagination) ([]*model.Service, int, error)
	RequiredDevices(ctx context.Context, serviceID uuid.UUID) ([]*model.Device, error)

	CreateDevice(ctx context.Context, device *model.Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error)
	UpdateDevice(ctx context.Context, device *model.Device) error
	DeleteDevice(ctx context.Context, id uuid.UUID) error
	ListDevices(ctx context.Context, roomID *uuid.UUID) ([]*model.Device, error)
}

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateRoom(ctx context.Context, room *model.Room) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	room.ID = uuid.New()
	if err := s.store.Rooms().Create(ctx, room); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	room, err := s.store.Rooms().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (s *Service) UpdateRoom(ctx context.Context, room *model.Room) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	if err := s.store.Rooms().Update(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

// DeleteRoom removes the room with its devices and appointments.
func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Rooms().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (s *Service) ListRooms(ctx context.Context, page model.Pagination) ([]*model.Room, int, error) {
	rooms, total, err := s.store.Rooms().List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, total, nil
}

// CreateService stores the service and its device requirements in one
// transaction.
func (s *Service) CreateService(ctx context.Context, service *model.Service) error {
	if err := validateService(service); err != nil {
		return err
	}
	service.ID = uuid.New()
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.Services().Create(ctx, service)
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	service, err := s.store.Services().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return service, nil
}

func (s *Service) UpdateService(ctx context.Context, service *model.Service) error {
	if err := validateService(service); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.Services().Update(ctx, service)
	})
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	return nil
}

// DeleteService fails while appointments still reference the service.
func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Services().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

func (s *Service) ListServices(ctx context.Context, page model.Pagination) ([]*model.Service, int, error) {
	services, total, err := s.store.Services().List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}
	return services, total, nil
}

func (s *Service) RequiredDevices(ctx context.Context, serviceID uuid.UUID) ([]*model.Device, error) {
	if _, err := s.store.Services().Get(ctx, serviceID); err != nil {
		return nil, fmt.Errorf("failed to get required devices: %w", err)
	}
	devices, err := s.store.Services().RequiredDevices(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get required devices: %w", err)
	}
	return devices, nil
}

func (s *Service) CreateDevice(ctx context.Context, device *model.Device) error {
	if strings.TrimSpace(device.Name) == "" {
		return apperrors.BadRequest("device name is required", nil)
	}
	if _, err := s.store.Rooms().Get(ctx, device.RoomID); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	device.ID = uuid.New()
	if err := s.store.Devices().Create(ctx, device); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (s *Service) GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	device, err := s.store.Devices().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

func (s *Service) UpdateDevice(ctx context.Context, device *model.Device) error {
	if strings.TrimSpace(device.Name) == "" {
		return apperrors.BadRequest("device name is required", nil)
	}
	if err := s.store.Devices().Update(ctx, device); err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return nil
}

func (s *Service) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Devices().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}

func (s *Service) ListDevices(ctx context.Context, roomID *uuid.UUID) ([]*model.Device, error) {
	devices, err := s.store.Devices().List(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func validateRoom(room *model.Room) error {
	if strings.TrimSpace(room.Code) == "" {
		return apperrors.BadRequest("room code is required", nil)
	}
	if !room.Type.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("unknown room type %q", room.Type), nil)
	}
	return nil
}

func validateService(service *model.Service) error {
	if strings.TrimSpace(service.Code) == "" || strings.TrimSpace(service.Name) == "" {
		return apperrors.BadRequest("service code and name are required", nil)
	}
	if service.Price < 0 {
		return apperrors.BadRequest("price must not be negative", nil)
	}
	return nil
}
