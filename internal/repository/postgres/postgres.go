package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

type roomRepository struct {
	db sqlx.ExtContext
}

type serviceRepository struct {
	db sqlx.ExtContext
}

type deviceRepository struct {
	db sqlx.ExtContext
}

type doctorRepository struct {
	db sqlx.ExtContext
}

type patientRepository struct {
	db sqlx.ExtContext
}

type appointmentRepository struct {
	db sqlx.ExtContext
}

type outboxRepository struct {
	db sqlx.ExtContext
}

func NewRoomRepository(db sqlx.ExtContext) repository.RoomRepository {
	return &roomRepository{db: db}
}

func NewServiceRepository(db sqlx.ExtContext) repository.ServiceRepository {
	return &serviceRepository{db: db}
}

func NewDeviceRepository(db sqlx.ExtContext) repository.DeviceRepository {
	return &deviceRepository{db: db}
}

func NewDoctorRepository(db sqlx.ExtContext) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func NewPatientRepository(db sqlx.ExtContext) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewAppointmentRepository(db sqlx.ExtContext) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewOutboxRepository(db sqlx.ExtContext) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

// queries binds every repository to one executor, either the pool or a
// transaction.
type queries struct {
	q sqlx.ExtContext
}

func (r queries) Rooms() repository.RoomRepository       { return NewRoomRepository(r.q) }
func (r queries) Services() repository.ServiceRepository { return NewServiceRepository(r.q) }
func (r queries) Devices() repository.DeviceRepository   { return NewDeviceRepository(r.q) }
func (r queries) Doctors() repository.DoctorRepository   { return NewDoctorRepository(r.q) }
func (r queries) Patients() repository.PatientRepository { return NewPatientRepository(r.q) }
func (r queries) Appointments() repository.AppointmentRepository {
	return NewAppointmentRepository(r.q)
}
func (r queries) Outbox() repository.OutboxRepository { return NewOutboxRepository(r.q) }

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	queries
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

// DB returns the database instance
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a serializable transaction. Together with the
// partial unique indexes on appointments this guarantees that concurrent
// bookings of the same slot resolve to a single winner.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return translateError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(queries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateError("commit transaction", err)
	}
	return nil
}
