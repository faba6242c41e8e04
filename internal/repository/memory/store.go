// Package memory is an in-process repository.Store. It backs the service
// tests and the `memory` database driver used for local development.
// It mirrors the constraints of the PostgreSQL schema: uniqueness of live
// appointment slots, foreign keys and cascades.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type state struct {
	rooms          map[uuid.UUID]model.Room
	services       map[uuid.UUID]model.Service
	serviceDevices map[uuid.UUID][]uuid.UUID
	devices        map[uuid.UUID]model.Device
	doctors        map[uuid.UUID]model.Doctor
	patients       map[uuid.UUID]model.Patient
	appointments   map[uuid.UUID]model.Appointment
	documents      map[uuid.UUID]model.AppointmentDocument
	outbox         map[uuid.UUID]model.OutboxEvent
}

func newState() *state {
	return &state{
		rooms:          make(map[uuid.UUID]model.Room),
		services:       make(map[uuid.UUID]model.Service),
		serviceDevices: make(map[uuid.UUID][]uuid.UUID),
		devices:        make(map[uuid.UUID]model.Device),
		doctors:        make(map[uuid.UUID]model.Doctor),
		patients:       make(map[uuid.UUID]model.Patient),
		appointments:   make(map[uuid.UUID]model.Appointment),
		documents:      make(map[uuid.UUID]model.AppointmentDocument),
		outbox:         make(map[uuid.UUID]model.OutboxEvent),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone is used to roll back a failed transaction. Stored values never
// share mutable memory with callers, so a shallow copy of each map is
// enough.
func (s *state) clone() *state {
	sd := make(map[uuid.UUID][]uuid.UUID, len(s.serviceDevices))
	for k, v := range s.serviceDevices {
		sd[k] = append([]uuid.UUID(nil), v...)
	}
	return &state{
		rooms:          copyMap(s.rooms),
		services:       copyMap(s.services),
		serviceDevices: sd,
		devices:        copyMap(s.devices),
		doctors:        copyMap(s.doctors),
		patients:       copyMap(s.patients),
		appointments:   copyMap(s.appointments),
		documents:      copyMap(s.documents),
		outbox:         copyMap(s.outbox),
	}
}

// Store serializes every transaction behind one mutex, which gives the
// same outcome as SERIALIZABLE isolation at the cost of concurrency.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// view implements repository.Tx. Inside WithTx the store mutex is already
// held, so inTx views skip locking.
type view struct {
	s    *Store
	inTx bool
}

func (v view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (v view) Rooms() repository.RoomRepository               { return roomRepo{v} }
func (v view) Services() repository.ServiceRepository         { return serviceRepo{v} }
func (v view) Devices() repository.DeviceRepository           { return deviceRepo{v} }
func (v view) Doctors() repository.DoctorRepository           { return doctorRepo{v} }
func (v view) Patients() repository.PatientRepository         { return patientRepo{v} }
func (v view) Appointments() repository.AppointmentRepository { return appointmentRepo{v} }
func (v view) Outbox() repository.OutboxRepository            { return outboxRepo{v} }

func (s *Store) Rooms() repository.RoomRepository               { return view{s: s}.Rooms() }
func (s *Store) Services() repository.ServiceRepository         { return view{s: s}.Services() }
func (s *Store) Devices() repository.DeviceRepository           { return view{s: s}.Devices() }
func (s *Store) Doctors() repository.DoctorRepository           { return view{s: s}.Doctors() }
func (s *Store) Patients() repository.PatientRepository         { return view{s: s}.Patients() }
func (s *Store) Appointments() repository.AppointmentRepository { return view{s: s}.Appointments() }
func (s *Store) Outbox() repository.OutboxRepository            { return view{s: s}.Outbox() }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithTx runs fn with exclusive access to the store. Any error or panic
// from fn restores the state captured before it started.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
	}()

	if err = fn(view{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func paginate[T any](items []T, page model.Pagination) []T {
	off := page.Offset()
	if off >= len(items) {
		return []T{}
	}
	end := off + page.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}
