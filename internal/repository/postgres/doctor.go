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

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (id, full_name, email, major, verified, certificate_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now().UTC()
	doctor.UpdatedAt = doctor.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID, doctor.FullName, doctor.Email, doctor.Major, doctor.Verified,
		doctor.CertificatePath, doctor.CreatedAt, doctor.UpdatedAt)
	return translateError("create doctor", err)
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	err := sqlx.GetContext(ctx, r.db, &doctor, `
		SELECT id, full_name, email, major, verified, certificate_path, created_at, updated_at
		FROM doctors WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("doctor", nil)
	}
	if err != nil {
		return nil, translateError("get doctor", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET full_name = $1, email = $2, major = $3, verified = $4,
			certificate_path = $5, updated_at = $6
		WHERE id = $7
	`
	doctor.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		doctor.FullName, doctor.Email, doctor.Major, doctor.Verified,
		doctor.CertificatePath, doctor.UpdatedAt, doctor.ID)
	if err != nil {
		return translateError("update doctor", err)
	}
	return expectAffected(result, "update doctor", "doctor")
}

func (r *doctorRepository) List(ctx context.Context, page model.Pagination) ([]*model.Doctor, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM doctors`); err != nil {
		return nil, 0, translateError("count doctors", err)
	}

	var doctors []*model.Doctor
	err := sqlx.SelectContext(ctx, r.db, &doctors, `
		SELECT id, full_name, email, major, verified, certificate_path, created_at, updated_at
		FROM doctors ORDER BY full_name ASC LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, translateError("list doctors", err)
	}
	return doctors, total, nil
}
