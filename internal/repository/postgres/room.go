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

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (id, code, description, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = time.Now().UTC()
	room.UpdatedAt = room.CreatedAt

	_, err := r.db.ExecContext(ctx, query, room.ID, room.Code, room.Description, room.Type, room.CreatedAt, room.UpdatedAt)
	return translateError("create room", err)
}

func (r *roomRepository) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	var room model.Room
	err := sqlx.GetContext(ctx, r.db, &room,
		`SELECT id, code, description, type, created_at, updated_at FROM rooms WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("room", nil)
	}
	if err != nil {
		return nil, translateError("get room", err)
	}
	return &room, nil
}

func (r *roomRepository) Update(ctx context.Context, room *model.Room) error {
	query := `
		UPDATE rooms SET code = $1, description = $2, type = $3, updated_at = $4
		WHERE id = $5
	`
	room.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, room.Code, room.Description, room.Type, room.UpdatedAt, room.ID)
	if err != nil {
		return translateError("update room", err)
	}
	return expectAffected(result, "update room", "room")
}

// Delete relies on ON DELETE CASCADE to drop the room's appointments and
// devices.
func (r *roomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return translateError("delete room", err)
	}
	return expectAffected(result, "delete room", "room")
}

func (r *roomRepository) List(ctx context.Context, page model.Pagination) ([]*model.Room, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM rooms`); err != nil {
		return nil, 0, translateError("count rooms", err)
	}

	var rooms []*model.Room
	err := sqlx.SelectContext(ctx, r.db, &rooms, `
		SELECT id, code, description, type, created_at, updated_at
		FROM rooms ORDER BY code ASC LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, translateError("list rooms", err)
	}
	return rooms, total, nil
}
