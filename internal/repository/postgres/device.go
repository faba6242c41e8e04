package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const deviceColumns = `d.id, d.room_id, d.name, d.value, d.description,
	d.purchase_date, d.active, d.created_at, d.updated_at`

func (r *deviceRepository) Create(ctx context.Context, device *model.Device) error {
	query := `
		INSERT INTO devices (id, room_id, name, value, description, purchase_date, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	device.CreatedAt = time.Now().UTC()
	device.UpdatedAt = device.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.RoomID, device.Name, device.Value, device.Description,
		device.PurchaseDate, device.Active, device.CreatedAt, device.UpdatedAt)
	return translateError("create device", err)
}

func (r *deviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	var device model.Device
	err := sqlx.GetContext(ctx, r.db, &device, `SELECT `+deviceColumns+` FROM devices d WHERE d.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("device", nil)
	}
	if err != nil {
		return nil, translateError("get device", err)
	}
	return &device, nil
}

func (r *deviceRepository) Update(ctx context.Context, device *model.Device) error {
	query := `
		UPDATE devices
		SET room_id = $1, name = $2, value = $3, description = $4,
			purchase_date = $5, active = $6, updated_at = $7
		WHERE id = $8
	`
	device.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		device.RoomID, device.Name, device.Value, device.Description,
		device.PurchaseDate, device.Active, device.UpdatedAt, device.ID)
	if err != nil {
		return translateError("update device", err)
	}
	return expectAffected(result, "update device", "device")
}

func (r *deviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return translateError("delete device", err)
	}
	return expectAffected(result, "delete device", "device")
}

func (r *deviceRepository) List(ctx context.Context, roomID *uuid.UUID) ([]*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices d`
	args := []interface{}{}
	if roomID != nil {
		query += ` WHERE d.room_id = $1`
		args = append(args, *roomID)
	}
	query += ` ORDER BY d.name ASC`

	var devices []*model.Device
	if err := sqlx.SelectContext(ctx, r.db, &devices, query, args...); err != nil {
		return nil, translateError("list devices", err)
	}
	return devices, nil
}
