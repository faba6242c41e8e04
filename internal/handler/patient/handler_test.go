package patient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	requestvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field string `json:"field"`
	} `json:"errors"`
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	require.NoError(t, requestvalidator.Register(v))

	engine := gin.New()
	NewHandler(patient.NewService(memory.NewStore().Patients())).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestPatientCRUD(t *testing.T) {
	engine := newEngine(t)

	code, env := do(t, engine, http.MethodPost, "/api/v1/patients", gin.H{
		"full_name": "Mia Kovac",
		"email":     "mia@example.com",
		"phone":     "+38640111222",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created model.Patient
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEqual(t, uuid.Nil, created.ID)
	base := "/api/v1/patients/" + created.ID.String()

	code, env = do(t, engine, http.MethodPut, base, gin.H{"full_name": "Mia Kovac", "phone": "+38640999888"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = do(t, engine, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	var got model.Patient
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "+38640999888", got.Phone)
	assert.Empty(t, got.Email)

	code, _ = do(t, engine, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, engine, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, engine, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPatientValidation(t *testing.T) {
	engine := newEngine(t)

	code, env := do(t, engine, http.MethodPost, "/api/v1/patients", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["full_name"])
	assert.True(t, fields["email"])

	code, _ = do(t, engine, http.MethodPost, "/api/v1/patients", gin.H{"full_name": "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, engine, http.MethodGet, "/api/v1/patients/42", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListPatientsReportsTotal(t *testing.T) {
	engine := newEngine(t)
	for _, name := range []string{"A", "B", "C"} {
		code, _ := do(t, engine, http.MethodPost, "/api/v1/patients", gin.H{"full_name": name})
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := do(t, engine, http.MethodGet, "/api/v1/patients?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items      []model.Patient `json:"items"`
		Pagination struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}
