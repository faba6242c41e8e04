package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type roomRepo struct{ v view }

func (r roomRepo) Create(ctx context.Context, room *model.Room) error {
	defer r.v.lock()()
	st := r.v.s.st

	for _, existing := range st.rooms {
		if existing.Code == room.Code {
			return apperrors.BadRequest("room code already exists", nil)
		}
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = time.Now().UTC()
	room.UpdatedAt = room.CreatedAt
	st.rooms[room.ID] = *room
	return nil
}

func (r roomRepo) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	defer r.v.lock()()
	room, ok := r.v.s.st.rooms[id]
	if !ok {
		return nil, apperrors.NotFound("room", nil)
	}
	return &room, nil
}

func (r roomRepo) Update(ctx context.Context, room *model.Room) error {
	defer r.v.lock()()
	st := r.v.s.st

	existing, ok := st.rooms[room.ID]
	if !ok {
		return apperrors.NotFound("room", nil)
	}
	for id, other := range st.rooms {
		if id != room.ID && other.Code == room.Code {
			return apperrors.BadRequest("room code already exists", nil)
		}
	}
	room.CreatedAt = existing.CreatedAt
	room.UpdatedAt = time.Now().UTC()
	st.rooms[room.ID] = *room
	return nil
}

// Delete cascades to the room's devices and appointments.
func (r roomRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.rooms[id]; !ok {
		return apperrors.NotFound("room", nil)
	}
	delete(st.rooms, id)
	for devID, d := range st.devices {
		if d.RoomID == id {
			st.deleteDevice(devID)
		}
	}
	for apptID, a := range st.appointments {
		if a.RoomID == id {
			st.deleteAppointment(apptID)
		}
	}
	return nil
}

func (r roomRepo) List(ctx context.Context, page model.Pagination) ([]*model.Room, int, error) {
	defer r.v.lock()()

	rooms := make([]*model.Room, 0, len(r.v.s.st.rooms))
	for _, room := range r.v.s.st.rooms {
		room := room
		rooms = append(rooms, &room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
	return paginate(rooms, page), len(rooms), nil
}

type serviceRepo struct{ v view }

func (r serviceRepo) Create(ctx context.Context, service *model.Service) error {
	defer r.v.lock()()
	st := r.v.s.st

	for _, existing := range st.services {
		if existing.Code == service.Code {
			return apperrors.BadRequest("service code already exists", nil)
		}
	}
	if err := st.checkDevices(service.RequiredDeviceIDs); err != nil {
		return err
	}
	if service.ID == uuid.Nil {
		service.ID = uuid.New()
	}
	service.CreatedAt = time.Now().UTC()
	service.UpdatedAt = service.CreatedAt
	st.putService(*service)
	return nil
}

func (r serviceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	defer r.v.lock()()
	return r.v.s.st.getService(id)
}

func (r serviceRepo) Update(ctx context.Context, service *model.Service) error {
	defer r.v.lock()()
	st := r.v.s.st

	existing, ok := st.services[service.ID]
	if !ok {
		return apperrors.NotFound("service", nil)
	}
	for id, other := range st.services {
		if id != service.ID && other.Code == service.Code {
			return apperrors.BadRequest("service code already exists", nil)
		}
	}
	if err := st.checkDevices(service.RequiredDeviceIDs); err != nil {
		return err
	}
	service.CreatedAt = existing.CreatedAt
	service.UpdatedAt = time.Now().UTC()
	st.putService(*service)
	return nil
}

// Delete refuses while appointments still reference the service.
func (r serviceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.services[id]; !ok {
		return apperrors.NotFound("service", nil)
	}
	for _, a := range st.appointments {
		if a.ServiceID == id {
			return apperrors.BadRequest("record is referenced by or references a missing record", nil)
		}
	}
	delete(st.services, id)
	delete(st.serviceDevices, id)
	return nil
}

func (r serviceRepo) List(ctx context.Context, page model.Pagination) ([]*model.Service, int, error) {
	defer r.v.lock()()

	services := make([]*model.Service, 0, len(r.v.s.st.services))
	for id := range r.v.s.st.services {
		s, _ := r.v.s.st.getService(id)
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Code < services[j].Code })
	return paginate(services, page), len(services), nil
}

func (r serviceRepo) SetRequiredDevices(ctx context.Context, serviceID uuid.UUID, deviceIDs []uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.services[serviceID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	if err := st.checkDevices(deviceIDs); err != nil {
		return err
	}
	st.serviceDevices[serviceID] = dedupe(deviceIDs)
	return nil
}

func (r serviceRepo) RequiredDevices(ctx context.Context, serviceID uuid.UUID) ([]*model.Device, error) {
	defer r.v.lock()()
	st := r.v.s.st

	devices := make([]*model.Device, 0, len(st.serviceDevices[serviceID]))
	for _, id := range st.serviceDevices[serviceID] {
		if d, ok := st.devices[id]; ok {
			devices = append(devices, &d)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

type deviceRepo struct{ v view }

func (r deviceRepo) Create(ctx context.Context, device *model.Device) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.rooms[device.RoomID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	device.CreatedAt = time.Now().UTC()
	device.UpdatedAt = device.CreatedAt
	st.devices[device.ID] = *device
	return nil
}

func (r deviceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	defer r.v.lock()()
	device, ok := r.v.s.st.devices[id]
	if !ok {
		return nil, apperrors.NotFound("device", nil)
	}
	return &device, nil
}

func (r deviceRepo) Update(ctx context.Context, device *model.Device) error {
	defer r.v.lock()()
	st := r.v.s.st

	existing, ok := st.devices[device.ID]
	if !ok {
		return apperrors.NotFound("device", nil)
	}
	if _, ok := st.rooms[device.RoomID]; !ok {
		return apperrors.BadRequest("record is referenced by or references a missing record", nil)
	}
	device.CreatedAt = existing.CreatedAt
	device.UpdatedAt = time.Now().UTC()
	st.devices[device.ID] = *device
	return nil
}

func (r deviceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.devices[id]; !ok {
		return apperrors.NotFound("device", nil)
	}
	st.deleteDevice(id)
	return nil
}

func (r deviceRepo) List(ctx context.Context, roomID *uuid.UUID) ([]*model.Device, error) {
	defer r.v.lock()()

	devices := make([]*model.Device, 0)
	for _, d := range r.v.s.st.devices {
		if roomID != nil && d.RoomID != *roomID {
			continue
		}
		d := d
		devices = append(devices, &d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

type doctorRepo struct{ v view }

func (r doctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	defer r.v.lock()()
	st := r.v.s.st

	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	if _, ok := st.doctors[doctor.ID]; ok {
		return apperrors.BadRequest("doctor already exists", nil)
	}
	doctor.CreatedAt = time.Now().UTC()
	doctor.UpdatedAt = doctor.CreatedAt
	st.doctors[doctor.ID] = copyDoctor(*doctor)
	return nil
}

func (r doctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	defer r.v.lock()()
	doctor, ok := r.v.s.st.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	d := copyDoctor(doctor)
	return &d, nil
}

func (r doctorRepo) Update(ctx context.Context, doctor *model.Doctor) error {
	defer r.v.lock()()
	st := r.v.s.st

	existing, ok := st.doctors[doctor.ID]
	if !ok {
		return apperrors.NotFound("doctor", nil)
	}
	doctor.CreatedAt = existing.CreatedAt
	doctor.UpdatedAt = time.Now().UTC()
	st.doctors[doctor.ID] = copyDoctor(*doctor)
	return nil
}

func (r doctorRepo) List(ctx context.Context, page model.Pagination) ([]*model.Doctor, int, error) {
	defer r.v.lock()()

	doctors := make([]*model.Doctor, 0, len(r.v.s.st.doctors))
	for _, d := range r.v.s.st.doctors {
		d := copyDoctor(d)
		doctors = append(doctors, &d)
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].FullName < doctors[j].FullName })
	return paginate(doctors, page), len(doctors), nil
}

type patientRepo struct{ v view }

func (r patientRepo) Create(ctx context.Context, patient *model.Patient) error {
	defer r.v.lock()()

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt
	r.v.s.st.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	defer r.v.lock()()
	patient, ok := r.v.s.st.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	return &patient, nil
}

func (r patientRepo) Update(ctx context.Context, patient *model.Patient) error {
	defer r.v.lock()()
	st := r.v.s.st

	existing, ok := st.patients[patient.ID]
	if !ok {
		return apperrors.NotFound("patient", nil)
	}
	patient.CreatedAt = existing.CreatedAt
	patient.UpdatedAt = time.Now().UTC()
	st.patients[patient.ID] = *patient
	return nil
}

// Delete cascades to the patient's appointments.
func (r patientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.v.lock()()
	st := r.v.s.st

	if _, ok := st.patients[id]; !ok {
		return apperrors.NotFound("patient", nil)
	}
	delete(st.patients, id)
	for apptID, a := range st.appointments {
		if a.PatientID == id {
			st.deleteAppointment(apptID)
		}
	}
	return nil
}

func (r patientRepo) List(ctx context.Context, page model.Pagination) ([]*model.Patient, int, error) {
	defer r.v.lock()()

	patients := make([]*model.Patient, 0, len(r.v.s.st.patients))
	for _, p := range r.v.s.st.patients {
		p := p
		patients = append(patients, &p)
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].FullName < patients[j].FullName })
	return paginate(patients, page), len(patients), nil
}

func (s *state) putService(service model.Service) {
	s.serviceDevices[service.ID] = dedupe(service.RequiredDeviceIDs)
	service.RequiredDeviceIDs = nil
	s.services[service.ID] = service
}

func (s *state) getService(id uuid.UUID) (*model.Service, error) {
	service, ok := s.services[id]
	if !ok {
		return nil, apperrors.NotFound("service", nil)
	}
	ids := append([]uuid.UUID(nil), s.serviceDevices[id]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	service.RequiredDeviceIDs = ids
	return &service, nil
}

func (s *state) checkDevices(ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := s.devices[id]; !ok {
			return apperrors.BadRequest("record is referenced by or references a missing record", nil)
		}
	}
	return nil
}

func (s *state) deleteDevice(id uuid.UUID) {
	delete(s.devices, id)
	for svcID, ids := range s.serviceDevices {
		kept := ids[:0]
		for _, d := range ids {
			if d != id {
				kept = append(kept, d)
			}
		}
		s.serviceDevices[svcID] = kept
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func copyDoctor(d model.Doctor) model.Doctor {
	if d.CertificatePath != nil {
		p := *d.CertificatePath
		d.CertificatePath = &p
	}
	return d
}
