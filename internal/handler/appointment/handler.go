package appointment

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id/schedule", h.RescheduleAppointment)
		appointments.PUT("/:id/doctor", h.AssignDoctor)
		appointments.POST("/:id/confirm", h.ConfirmAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.GET("/:id/documents", h.ListDocuments)
		appointments.POST("/:id/documents", h.AttachDocument)
		appointments.DELETE("/:id/documents/:documentId", h.RemoveDocument)
	}

	r.GET("/rooms/:id/slots", h.RoomSlots)
	r.GET("/patients/:id/appointments", h.ListPatientAppointments)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	apt, err := retryOnce(func() (*model.Appointment, error) {
		return h.service.CreateAppointment(c.Request.Context(), req.toServiceRequest())
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, toResponse(apt))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, toResponse(apt))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	h.list(c, q.toFilters())
}

// ListPatientAppointments is ListAppointments scoped to the patient in the
// path.
func (h *Handler) ListPatientAppointments(c *gin.Context) {
	patientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	filters := q.toFilters()
	filters.PatientID = &patientID
	h.list(c, filters)
}

func (h *Handler) list(c *gin.Context, filters *model.AppointmentFilters) {
	appointments, total, err := h.service.ListAppointments(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	httputil.RespondWithPagination(c, toResponses(appointments), page, filters.Limit(), total)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	date, _ := model.ParseDate(req.Date)

	apt, err := retryOnce(func() (*model.Appointment, error) {
		return h.service.RescheduleAppointment(c.Request.Context(), id, date, *req.Slot)
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, toResponse(apt))
}

func (h *Handler) AssignDoctor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req assignDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	doctorID := uuid.MustParse(req.DoctorID)

	apt, err := retryOnce(func() (*model.Appointment, error) {
		return h.service.AssignDoctor(c.Request.Context(), id, doctorID)
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, toResponse(apt))
}

func (h *Handler) ConfirmAppointment(c *gin.Context) {
	h.transition(c, h.service.ConfirmAppointment)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	h.transition(c, h.service.CompleteAppointment)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	// The body is optional.
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithBindError(c, err)
			return
		}
	}

	apt, err := h.service.CancelAppointment(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, toResponse(apt))
}

func (h *Handler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.Appointment, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	apt, err := fn(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, toResponse(apt))
}

func (h *Handler) AttachDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	doc, err := h.service.AttachDocument(c.Request.Context(), id, req.toServiceRequest())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, docs)
}

func (h *Handler) RemoveDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}

	if err := h.service.RemoveDocument(c.Request.Context(), id, documentID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RoomSlots lists the slots of one day for a room with their availability.
func (h *Handler) RoomSlots(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var q slotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	date, _ := model.ParseDate(q.Date)

	slots, err := h.service.RoomAvailability(c.Request.Context(), roomID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// retryOnce repeats a booking write once when the store reports a
// transient failure such as a serialization conflict between concurrent
// transactions. Business rejections are returned as-is.
func retryOnce(fn func() (*model.Appointment, error)) (*model.Appointment, error) {
	apt, err := fn()
	if errors.Is(err, apperrors.ErrPersistence) {
		apt, err = fn()
	}
	return apt, err
}
