package doctor

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	requestvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	engine *gin.Engine
	store  *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	require.NoError(t, requestvalidator.Register(v))

	store := memory.NewStore()
	engine := gin.New()
	NewHandler(doctor.NewService(store, event.NewService(nil))).RegisterRoutes(engine.Group("/api/v1"))
	return &testAPI{engine: engine, store: store}
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

func (a *testAPI) pendingEvents(t *testing.T) []string {
	t.Helper()
	events, err := a.store.Outbox().ClaimPending(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}

func TestDoctorRegistrationAndVerify(t *testing.T) {
	a := newTestAPI(t)

	code, env := a.do(t, http.MethodPost, "/api/v1/doctors", gin.H{
		"full_name": "Dr. Ana Novak",
		"email":     "ana@example.com",
		"major":     "orthodontics",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created model.Doctor
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.False(t, created.Verified)
	assert.Equal(t, []string{model.EventDoctorRequested}, a.pendingEvents(t))

	base := "/api/v1/doctors/" + created.ID.String()
	code, env = a.do(t, http.MethodPost, base+"/verify", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var verified model.Doctor
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	assert.True(t, verified.Verified)
	assert.Equal(t, []string{model.EventDoctorVerified}, a.pendingEvents(t))

	code, _ = a.do(t, http.MethodPost, base+"/verify", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Empty(t, a.pendingEvents(t))

	code, _ = a.do(t, http.MethodPost, "/api/v1/doctors/"+uuid.NewString()+"/verify", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/doctors/not-a-uuid/verify", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateDoctorWithUserID(t *testing.T) {
	a := newTestAPI(t)
	userID := uuid.New()

	code, env := a.do(t, http.MethodPost, "/api/v1/doctors", gin.H{"user_id": userID.String(), "full_name": "Dr. Lee"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = a.do(t, http.MethodGet, "/api/v1/doctors/"+userID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var got model.Doctor
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Dr. Lee", got.FullName)

	code, _ = a.do(t, http.MethodPost, "/api/v1/doctors", gin.H{"user_id": "nope", "full_name": "Dr. Lee"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/doctors", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateAndListDoctors(t *testing.T) {
	a := newTestAPI(t)

	ids := make([]uuid.UUID, 0, 3)
	for _, name := range []string{"Dr. A", "Dr. B", "Dr. C"} {
		code, env := a.do(t, http.MethodPost, "/api/v1/doctors", gin.H{"full_name": name})
		require.Equal(t, http.StatusCreated, code)
		var d model.Doctor
		require.NoError(t, json.Unmarshal(env.Data, &d))
		ids = append(ids, d.ID)
	}

	code, env := a.do(t, http.MethodPut, "/api/v1/doctors/"+ids[0].String(), gin.H{"full_name": "Dr. A", "major": "surgery"})
	require.Equal(t, http.StatusOK, code, env.Message)
	code, env = a.do(t, http.MethodGet, "/api/v1/doctors/"+ids[0].String(), nil)
	require.Equal(t, http.StatusOK, code)
	var got model.Doctor
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "surgery", got.Major)

	code, env = a.do(t, http.MethodGet, "/api/v1/doctors?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items      []model.Doctor `json:"items"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	code, _ = a.do(t, http.MethodPut, "/api/v1/doctors/"+uuid.NewString(), gin.H{"full_name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, code)
}
