package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type doctorRequest struct {
	// UserID links the doctor to an existing account. Optional on create.
	UserID          *string `json:"user_id" binding:"omitempty,uuid"`
	FullName        string  `json:"full_name" binding:"required,max=255"`
	Email           string  `json:"email" binding:"omitempty,email"`
	Major           string  `json:"major" binding:"max=255"`
	CertificatePath *string `json:"certificate_path" binding:"omitempty,max=1024"`
}

func (r doctorRequest) toModel() *model.Doctor {
	d := &model.Doctor{
		FullName:        r.FullName,
		Email:           r.Email,
		Major:           r.Major,
		CertificatePath: r.CertificatePath,
	}
	if r.UserID != nil {
		d.ID = uuid.MustParse(*r.UserID)
	}
	return d
}

type Handler struct {
	service doctor.Service
}

func NewHandler(service doctor.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PUT("/:id", h.UpdateDoctor)
		doctors.POST("/:id/verify", h.VerifyDoctor)
	}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req doctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	d := req.toModel()
	if err := h.service.CreateDoctor(c.Request.Context(), d); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
		return
	}

	d, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
		return
	}

	var req doctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	d := req.toModel()
	d.ID = id
	if err := h.service.UpdateDoctor(c.Request.Context(), d); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	doctors, total, err := h.service.ListDoctors(c.Request.Context(), page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, doctors, max(page.Page, 1), page.Limit(), total)
}

// VerifyDoctor makes a pending doctor bookable.
func (h *Handler) VerifyDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
		return
	}

	d, err := h.service.VerifyDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, d)
}
