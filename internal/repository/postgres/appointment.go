package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const appointmentColumns = `id, doctor_id, patient_id, room_id, service_id,
	date, slot, state, content, cancel_reason, created_at, updated_at`

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := sqlx.GetContext(ctx, r.db, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if err != nil {
		return nil, translateError("get appointment", err)
	}
	appointment.Date = model.DateOf(appointment.Date)
	return &appointment, nil
}

func (r *appointmentRepository) FindConflicting(ctx context.Context, kind model.ConflictKind, key uuid.UUID, date time.Time, slot int, excludeID *uuid.UUID) (*model.Appointment, error) {
	var column string
	switch kind {
	case model.ConflictRoom:
		column = "room_id"
	case model.ConflictDoctor:
		column = "doctor_id"
	default:
		return nil, fmt.Errorf("unknown conflict kind %q", kind)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE ` + column + ` = $1
		AND date = $2
		AND slot = $3
		AND state <> 'cancelled'`
	args := []interface{}{key, model.DateOf(date), slot}

	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}
	query += " LIMIT 1"

	var appointment model.Appointment
	err := sqlx.GetContext(ctx, r.db, &appointment, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("check appointment conflicts", err)
	}
	appointment.Date = model.DateOf(appointment.Date)
	return &appointment, nil
}

func (r *appointmentRepository) Insert(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, room_id, service_id,
			date, slot, state, content, cancel_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	appointment.Date = model.DateOf(appointment.Date)

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.RoomID,
		appointment.ServiceID,
		appointment.Date,
		appointment.Slot,
		appointment.State,
		appointment.Content,
		appointment.CancelReason,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return translateError("create appointment", err)
	}
	return nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET doctor_id = $1, date = $2, slot = $3, state = $4,
			content = $5, cancel_reason = $6, updated_at = $7
		WHERE id = $8
	`
	appointment.UpdatedAt = time.Now().UTC()
	appointment.Date = model.DateOf(appointment.Date)

	result, err := r.db.ExecContext(ctx, query,
		appointment.DoctorID,
		appointment.Date,
		appointment.Slot,
		appointment.State,
		appointment.Content,
		appointment.CancelReason,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return translateError("update appointment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translateError("update appointment", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	query := ` FROM appointments WHERE 1 = 1`
	args := []interface{}{}
	argCount := 1

	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	if filters.RoomID != nil {
		query += fmt.Sprintf(" AND room_id = $%d", argCount)
		args = append(args, *filters.RoomID)
		argCount++
	}
	if filters.DoctorID != nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, *filters.DoctorID)
		argCount++
	}
	if filters.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, *filters.PatientID)
		argCount++
	}
	if filters.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argCount)
		args = append(args, filters.State)
		argCount++
	}
	if filters.From != nil {
		query += fmt.Sprintf(" AND date >= $%d", argCount)
		args = append(args, model.DateOf(*filters.From))
		argCount++
	}
	if filters.To != nil {
		query += fmt.Sprintf(" AND date <= $%d", argCount)
		args = append(args, model.DateOf(*filters.To))
		argCount++
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*)`+query, args...); err != nil {
		return nil, 0, translateError("count appointments", err)
	}

	query += fmt.Sprintf(" ORDER BY date ASC, slot ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, r.db, &appointments, `SELECT `+appointmentColumns+query, args...); err != nil {
		return nil, 0, translateError("list appointments", err)
	}
	for _, a := range appointments {
		a.Date = model.DateOf(a.Date)
	}
	return appointments, total, nil
}

func (r *appointmentRepository) ListForRoomDate(ctx context.Context, roomID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE room_id = $1 AND date = $2 AND state <> 'cancelled'
		ORDER BY slot ASC`

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, roomID, model.DateOf(date)); err != nil {
		return nil, translateError("list room appointments", err)
	}
	for _, a := range appointments {
		a.Date = model.DateOf(a.Date)
	}
	return appointments, nil
}

func (r *appointmentRepository) InsertDocument(ctx context.Context, doc *model.AppointmentDocument) error {
	query := `
		INSERT INTO appointment_documents (id, appointment_id, file_path, tag, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query, doc.ID, doc.AppointmentID, doc.FilePath, doc.Tag, doc.Title, doc.CreatedAt)
	if err != nil {
		return translateError("create appointment document", err)
	}
	return nil
}

func (r *appointmentRepository) ListDocuments(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentDocument, error) {
	query := `
		SELECT id, appointment_id, file_path, tag, title, created_at
		FROM appointment_documents
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`
	var docs []*model.AppointmentDocument
	if err := sqlx.SelectContext(ctx, r.db, &docs, query, appointmentID); err != nil {
		return nil, translateError("list appointment documents", err)
	}
	return docs, nil
}

func (r *appointmentRepository) DeleteDocument(ctx context.Context, appointmentID, documentID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM appointment_documents WHERE id = $1 AND appointment_id = $2`,
		documentID, appointmentID)
	if err != nil {
		return translateError("delete appointment document", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return translateError("delete appointment document", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment document", nil)
	}
	return nil
}
