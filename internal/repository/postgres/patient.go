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

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, full_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		patient.ID, patient.FullName, patient.Email, patient.Phone, patient.CreatedAt, patient.UpdatedAt)
	return translateError("create patient", err)
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	err := sqlx.GetContext(ctx, r.db, &patient, `
		SELECT id, full_name, email, phone, created_at, updated_at
		FROM patients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", nil)
	}
	if err != nil {
		return nil, translateError("get patient", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET full_name = $1, email = $2, phone = $3, updated_at = $4
		WHERE id = $5
	`
	patient.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		patient.FullName, patient.Email, patient.Phone, patient.UpdatedAt, patient.ID)
	if err != nil {
		return translateError("update patient", err)
	}
	return expectAffected(result, "update patient", "patient")
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return translateError("delete patient", err)
	}
	return expectAffected(result, "delete patient", "patient")
}

func (r *patientRepository) List(ctx context.Context, page model.Pagination) ([]*model.Patient, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM patients`); err != nil {
		return nil, 0, translateError("count patients", err)
	}

	var patients []*model.Patient
	err := sqlx.SelectContext(ctx, r.db, &patients, `
		SELECT id, full_name, email, phone, created_at, updated_at
		FROM patients ORDER BY full_name ASC LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, translateError("list patients", err)
	}
	return patients, total, nil
}
