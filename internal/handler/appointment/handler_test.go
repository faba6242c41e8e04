package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	requestvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

// flakyStore fails the next n transactions with a persistence error.
type flakyStore struct {
	*memory.Store
	failures int
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if s.failures > 0 {
		s.failures--
		return apperrors.Persistence("commit transaction", errors.New("could not serialize access"))
	}
	return s.Store.WithTx(ctx, fn)
}

type testAPI struct {
	engine  *gin.Engine
	store   *flakyStore
	r1, r2  uuid.UUID
	d1, d2  uuid.UUID
	service uuid.UUID
	patient uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	require.NoError(t, requestvalidator.Register(v))

	weekly := make(map[time.Weekday]scheduling.Hours)
	for d := time.Monday; d <= time.Friday; d++ {
		weekly[d] = scheduling.Hours{Open: 8 * time.Hour, Close: 16 * time.Hour}
	}
	cal, err := scheduling.NewCalendar(scheduling.Config{SlotDuration: time.Hour, Weekly: weekly})
	require.NoError(t, err)

	store := &flakyStore{Store: memory.NewStore()}
	svc := appointment.NewService(store, booking.NewValidator(cal, booking.AllowPastDates(true)), cal, event.NewService(nil), nil, nil)

	ctx := context.Background()
	r1 := &model.Room{Code: "R1", Type: model.RoomTypeGeneral}
	r2 := &model.Room{Code: "R2", Type: model.RoomTypeGeneral}
	d1 := &model.Doctor{FullName: "D1", Verified: true}
	d2 := &model.Doctor{FullName: "D2", Verified: true}
	service := &model.Service{Code: "CHECK", Name: "Checkup"}
	patient := &model.Patient{FullName: "P1"}
	require.NoError(t, store.Rooms().Create(ctx, r1))
	require.NoError(t, store.Rooms().Create(ctx, r2))
	require.NoError(t, store.Doctors().Create(ctx, d1))
	require.NoError(t, store.Doctors().Create(ctx, d2))
	require.NoError(t, store.Services().Create(ctx, service))
	require.NoError(t, store.Patients().Create(ctx, patient))

	engine := gin.New()
	NewHandler(svc).RegisterRoutes(engine.Group("/api/v1"))

	return &testAPI{
		engine:  engine,
		store:   store,
		r1:      r1.ID,
		r2:      r2.ID,
		d1:      d1.ID,
		d2:      d2.ID,
		service: service.ID,
		patient: patient.ID,
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (a *testAPI) booking(room, doctor uuid.UUID, slot int) gin.H {
	return gin.H{
		"patient_id": a.patient.String(),
		"room_id":    room.String(),
		"service_id": a.service.String(),
		"doctor_id":  doctor.String(),
		"date":       "2024-01-10",
		"slot":       slot,
	}
}

func TestCreateAppointmentConflicts(t *testing.T) {
	a := newTestAPI(t)

	code, env := a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 3))
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created appointmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "2024-01-10", created.Date)
	assert.Equal(t, model.AppointmentStateRequested, created.State)

	code, env = a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d2, 3))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperrors.ErrRoomConflict.Message, env.Message)

	code, env = a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r2, a.d1, 3))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperrors.ErrDoctorConflict.Message, env.Message)

	code, _ = a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r2, a.d2, 3))
	assert.Equal(t, http.StatusCreated, code)
}

func TestCreateAppointmentValidation(t *testing.T) {
	a := newTestAPI(t)

	body := a.booking(a.r1, a.d1, 0)
	delete(body, "slot")
	body["date"] = "10.01.2024"
	code, env := a.do(t, http.MethodPost, "/api/v1/appointments", body)
	assert.Equal(t, http.StatusBadRequest, code)
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["slot"])
	assert.True(t, fields["date"])

	// Slot zero is a valid slot, not a missing one.
	code, _ = a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 0))
	assert.Equal(t, http.StatusCreated, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 99))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestCreateAppointmentRetriesTransientFailure(t *testing.T) {
	a := newTestAPI(t)

	a.store.failures = 1
	code, _ := a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 1))
	assert.Equal(t, http.StatusCreated, code)

	a.store.failures = 2
	code, _ = a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 2))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestGetAppointmentErrors(t *testing.T) {
	a := newTestAPI(t)

	code, _ := a.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)

	_, env := a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 3))
	var apt appointmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	base := "/api/v1/appointments/" + apt.ID.String()

	code, env := a.do(t, http.MethodPut, base+"/schedule", gin.H{"date": "2024-01-11", "slot": 5})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, _ = a.do(t, http.MethodPost, base+"/confirm", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = a.do(t, http.MethodPost, base+"/cancel", gin.H{"reason": "patient request"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, model.AppointmentStateCancelled, apt.State)
	require.NotNil(t, apt.CancelReason)
	assert.Equal(t, "patient request", *apt.CancelReason)

	code, _ = a.do(t, http.MethodPost, base+"/complete", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestRoomSlots(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 2))

	code, env := a.do(t, http.MethodGet, "/api/v1/rooms/"+a.r1.String()+"/slots?date=2024-01-10", nil)
	require.Equal(t, http.StatusOK, code)

	var slots []model.SlotAvailability
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	require.Len(t, slots, 8)
	assert.False(t, slots[2].Available)
	assert.True(t, slots[3].Available)

	code, _ = a.do(t, http.MethodGet, "/api/v1/rooms/"+a.r1.String()+"/slots", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListPatientAppointments(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 1))
	a.do(t, http.MethodPost, "/api/v1/appointments", a.booking(a.r1, a.d1, 2))

	code, env := a.do(t, http.MethodGet, "/api/v1/patients/"+a.patient.String()+"/appointments?state=requested", nil)
	require.Equal(t, http.StatusOK, code)

	var page struct {
		Items []appointmentResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 2)

	code, env = a.do(t, http.MethodGet, "/api/v1/appointments?page=2&page_size=1", nil)
	require.Equal(t, http.StatusOK, code)
	var paged struct {
		Items      []appointmentResponse `json:"items"`
		Pagination struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &paged))
	require.Len(t, paged.Items, 1)
	assert.Equal(t, 2, paged.Items[0].Slot)
	assert.Equal(t, 2, paged.Pagination.Page)
	assert.Equal(t, 2, paged.Pagination.Total)
	assert.Equal(t, 2, paged.Pagination.TotalPages)

	code, _ = a.do(t, http.MethodGet, "/api/v1/appointments?state=lost", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
