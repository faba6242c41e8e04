package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Index names from migrations/0001_init.sql.
const (
	roomSlotConstraint   = "appointments_room_slot_key"
	doctorSlotConstraint = "appointments_doctor_slot_key"
)

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// translateError maps driver errors onto the application taxonomy. The
// partial unique indexes are the final guard against double booking, so
// their violations surface as booking conflicts rather than generic
// persistence failures.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			switch pqErr.Constraint {
			case roomSlotConstraint:
				return apperrors.Wrap(apperrors.ErrRoomConflict, err)
			case doctorSlotConstraint:
				return apperrors.Wrap(apperrors.ErrDoctorConflict, err)
			}
			return apperrors.BadRequest(fmt.Sprintf("duplicate value violates %s", pqErr.Constraint), err)
		case pqForeignKeyViolation:
			return apperrors.BadRequest("record is referenced by or references a missing record", err)
		case pqSerializationFailure, pqDeadlockDetected:
			return apperrors.Persistence(op, err)
		}
	}

	return apperrors.Persistence(op, err)
}

// expectAffected turns a zero-row write into a not-found error.
func expectAffected(result sql.Result, op, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return translateError(op, err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}
