package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// Response wraps all API responses
type Response struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Errors  []validator.FieldError `json:"errors,omitempty"`
}

// Pagination describes the page that was served. Total counts every
// matching record, not only those on this page.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

func RespondWithPagination(c *gin.Context, items interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	RespondWithSuccess(c, http.StatusOK, PaginatedResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// RespondWithError maps err to a status through the AppError in its chain.
// Errors without one are reported as 500 without exposing their text.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	message := apperrors.ErrInternal.Message

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode()
		if status != http.StatusInternalServerError {
			message = appErr.Message
		}
	}

	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Message: message,
	})
}

// RespondWithBindError reports a request that failed to bind or validate.
func RespondWithBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	if fields := validator.Describe(err); fields != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Status:  "error",
			Message: "validation failed",
			Errors:  fields,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  "error",
		Message: "invalid request: " + err.Error(),
	})
}
