package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func TestRoomValidation(t *testing.T) {
	svc := NewService(memory.NewStore())
	ctx := context.Background()

	err := svc.CreateRoom(ctx, &model.Room{Code: "R1", Type: "kitchen"})
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	room := &model.Room{Code: "R1", Type: model.RoomTypeSurgery}
	require.NoError(t, svc.CreateRoom(ctx, room))

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomTypeSurgery, got.Type)
}

func TestServiceWithRequiredDevices(t *testing.T) {
	svc := NewService(memory.NewStore())
	ctx := context.Background()

	room := &model.Room{Code: "R1", Type: model.RoomTypeXRay}
	require.NoError(t, svc.CreateRoom(ctx, room))
	device := &model.Device{RoomID: room.ID, Name: "Panoramic X-ray", Active: true}
	require.NoError(t, svc.CreateDevice(ctx, device))

	service := &model.Service{Code: "XR", Name: "X-ray", Price: 50000, RequiredDeviceIDs: []uuid.UUID{device.ID}}
	require.NoError(t, svc.CreateService(ctx, service))

	devices, err := svc.RequiredDevices(ctx, service.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, device.ID, devices[0].ID)

	bad := &model.Service{Code: "XR2", Name: "X-ray 2", RequiredDeviceIDs: []uuid.UUID{uuid.New()}}
	err = svc.CreateService(ctx, bad)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
}

func TestCreateDeviceUnknownRoom(t *testing.T) {
	svc := NewService(memory.NewStore())

	err := svc.CreateDevice(context.Background(), &model.Device{RoomID: uuid.New(), Name: "Chair"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
