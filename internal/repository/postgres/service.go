package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (id, code, name, description, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if service.ID == uuid.Nil {
		service.ID = uuid.New()
	}
	service.CreatedAt = time.Now().UTC()
	service.UpdatedAt = service.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		service.ID, service.Code, service.Name, service.Description, service.Price,
		service.CreatedAt, service.UpdatedAt)
	if err != nil {
		return translateError("create service", err)
	}
	return r.SetRequiredDevices(ctx, service.ID, service.RequiredDeviceIDs)
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var service model.Service
	err := sqlx.GetContext(ctx, r.db, &service, `
		SELECT id, code, name, description, price, created_at, updated_at
		FROM services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("service", nil)
	}
	if err != nil {
		return nil, translateError("get service", err)
	}

	var deviceIDs []uuid.UUID
	err = sqlx.SelectContext(ctx, r.db, &deviceIDs,
		`SELECT device_id FROM service_devices WHERE service_id = $1 ORDER BY device_id`, id)
	if err != nil {
		return nil, translateError("get service devices", err)
	}
	service.RequiredDeviceIDs = deviceIDs
	return &service, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	query := `
		UPDATE services SET code = $1, name = $2, description = $3, price = $4, updated_at = $5
		WHERE id = $6
	`
	service.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		service.Code, service.Name, service.Description, service.Price, service.UpdatedAt, service.ID)
	if err != nil {
		return translateError("update service", err)
	}
	if err := expectAffected(result, "update service", "service"); err != nil {
		return err
	}
	return r.SetRequiredDevices(ctx, service.ID, service.RequiredDeviceIDs)
}

func (r *serviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return translateError("delete service", err)
	}
	return expectAffected(result, "delete service", "service")
}

func (r *serviceRepository) List(ctx context.Context, page model.Pagination) ([]*model.Service, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM services`); err != nil {
		return nil, 0, translateError("count services", err)
	}

	var services []*model.Service
	err := sqlx.SelectContext(ctx, r.db, &services, `
		SELECT id, code, name, description, price, created_at, updated_at
		FROM services ORDER BY code ASC LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, translateError("list services", err)
	}
	return services, total, nil
}

// SetRequiredDevices replaces the service's device requirements.
func (r *serviceRepository) SetRequiredDevices(ctx context.Context, serviceID uuid.UUID, deviceIDs []uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM service_devices WHERE service_id = $1`, serviceID); err != nil {
		return translateError("clear service devices", err)
	}
	if len(deviceIDs) == 0 {
		return nil
	}

	ids := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		ids[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO service_devices (service_id, device_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, serviceID, pq.StringArray(ids))
	return translateError("set service devices", err)
}

func (r *serviceRepository) RequiredDevices(ctx context.Context, serviceID uuid.UUID) ([]*model.Device, error) {
	var devices []*model.Device
	err := sqlx.SelectContext(ctx, r.db, &devices, `
		SELECT `+deviceColumns+`
		FROM devices d
		JOIN service_devices sd ON sd.device_id = d.id
		WHERE sd.service_id = $1
		ORDER BY d.name ASC`, serviceID)
	if err != nil {
		return nil, translateError("list required devices", err)
	}
	return devices, nil
}
