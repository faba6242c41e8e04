package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type roomRequest struct {
	Code        string `json:"code" binding:"required,max=32"`
	Description string `json:"description" binding:"max=1000"`
	Type        string `json:"type" binding:"required,roomtype"`
}

func (r roomRequest) toModel() *model.Room {
	return &model.Room{
		Code:        r.Code,
		Description: r.Description,
		Type:        model.RoomType(r.Type),
	}
}

type serviceRequest struct {
	Code              string   `json:"code" binding:"required,max=32"`
	Name              string   `json:"name" binding:"required,max=255"`
	Description       string   `json:"description" binding:"max=1000"`
	Price             int64    `json:"price" binding:"min=0"`
	RequiredDeviceIDs []string `json:"required_device_ids" binding:"omitempty,dive,uuid"`
}

func (r serviceRequest) toModel() *model.Service {
	s := &model.Service{
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
	}
	for _, id := range r.RequiredDeviceIDs {
		s.RequiredDeviceIDs = append(s.RequiredDeviceIDs, uuid.MustParse(id))
	}
	return s
}

type deviceRequest struct {
	RoomID       string `json:"room_id" binding:"required,uuid"`
	Name         string `json:"name" binding:"required,max=255"`
	Value        int64  `json:"value" binding:"min=0"`
	Description  string `json:"description" binding:"max=1000"`
	PurchaseDate string `json:"purchase_date" binding:"omitempty,isodate"`
	Active       *bool  `json:"active"`
}

func (r deviceRequest) toModel() *model.Device {
	d := &model.Device{
		RoomID:      uuid.MustParse(r.RoomID),
		Name:        r.Name,
		Value:       r.Value,
		Description: r.Description,
		Active:      true,
	}
	if r.PurchaseDate != "" {
		d.PurchaseDate, _ = model.ParseDate(r.PurchaseDate)
	}
	if r.Active != nil {
		d.Active = *r.Active
	}
	return d
}

type deviceResponse struct {
	ID           uuid.UUID `json:"id"`
	RoomID       uuid.UUID `json:"room_id"`
	Name         string    `json:"name"`
	Value        int64     `json:"value"`
	Description  string    `json:"description"`
	PurchaseDate string    `json:"purchase_date,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDeviceResponse(d *model.Device) deviceResponse {
	out := deviceResponse{
		ID:          d.ID,
		RoomID:      d.RoomID,
		Name:        d.Name,
		Value:       d.Value,
		Description: d.Description,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if !d.PurchaseDate.IsZero() {
		out.PurchaseDate = d.PurchaseDate.Format(model.DateLayout)
	}
	return out
}

func toDeviceResponses(ds []*model.Device) []deviceResponse {
	out := make([]deviceResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDeviceResponse(d))
	}
	return out
}
