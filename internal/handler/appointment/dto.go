package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
)

type createRequest struct {
	PatientID string  `json:"patient_id" binding:"required,uuid"`
	RoomID    string  `json:"room_id" binding:"required,uuid"`
	ServiceID string  `json:"service_id" binding:"required,uuid"`
	DoctorID  *string `json:"doctor_id" binding:"omitempty,uuid"`
	Date      string  `json:"date" binding:"required,isodate"`
	Slot      *int    `json:"slot" binding:"required,min=0"`
	Content   string  `json:"content" binding:"max=4000"`
}

type rescheduleRequest struct {
	Date string `json:"date" binding:"required,isodate"`
	Slot *int   `json:"slot" binding:"required,min=0"`
}

type assignDoctorRequest struct {
	DoctorID string `json:"doctor_id" binding:"required,uuid"`
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type documentRequest struct {
	FilePath string `json:"file_path" binding:"required,max=1024"`
	Tag      string `json:"tag" binding:"required,doctag"`
	Title    string `json:"title" binding:"max=255"`
}

type listQuery struct {
	RoomID    string `form:"room_id" binding:"omitempty,uuid"`
	DoctorID  string `form:"doctor_id" binding:"omitempty,uuid"`
	PatientID string `form:"patient_id" binding:"omitempty,uuid"`
	State     string `form:"state" binding:"omitempty,apstate"`
	From      string `form:"from" binding:"omitempty,isodate"`
	To        string `form:"to" binding:"omitempty,isodate"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type slotsQuery struct {
	Date string `form:"date" binding:"required,isodate"`
}

type appointmentResponse struct {
	ID           uuid.UUID              `json:"id"`
	PatientID    uuid.UUID              `json:"patient_id"`
	RoomID       uuid.UUID              `json:"room_id"`
	ServiceID    uuid.UUID              `json:"service_id"`
	DoctorID     *uuid.UUID             `json:"doctor_id,omitempty"`
	Date         string                 `json:"date"`
	Slot         int                    `json:"slot"`
	State        model.AppointmentState `json:"state"`
	Content      string                 `json:"content,omitempty"`
	CancelReason *string                `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Binding has already validated UUIDs and dates, so the parse errors below
// are unreachable for bound requests.

func (r createRequest) toServiceRequest() appointment.CreateRequest {
	out := appointment.CreateRequest{
		PatientID: uuid.MustParse(r.PatientID),
		RoomID:    uuid.MustParse(r.RoomID),
		ServiceID: uuid.MustParse(r.ServiceID),
		Slot:      *r.Slot,
		Content:   r.Content,
	}
	out.Date, _ = model.ParseDate(r.Date)
	if r.DoctorID != nil {
		id := uuid.MustParse(*r.DoctorID)
		out.DoctorID = &id
	}
	return out
}

func (r documentRequest) toServiceRequest() appointment.DocumentRequest {
	return appointment.DocumentRequest{
		FilePath: r.FilePath,
		Tag:      model.DocumentTag(r.Tag),
		Title:    r.Title,
	}
}

func (q listQuery) toFilters() *model.AppointmentFilters {
	f := &model.AppointmentFilters{
		State:      model.AppointmentState(q.State),
		Pagination: model.Pagination{Page: q.Page, PageSize: q.PageSize},
	}
	f.RoomID = optionalUUID(q.RoomID)
	f.DoctorID = optionalUUID(q.DoctorID)
	f.PatientID = optionalUUID(q.PatientID)
	f.From = optionalDate(q.From)
	f.To = optionalDate(q.To)
	return f
}

func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}

func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func toResponse(a *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		RoomID:       a.RoomID,
		ServiceID:    a.ServiceID,
		DoctorID:     a.DoctorID,
		Date:         a.Date.Format(model.DateLayout),
		Slot:         a.Slot,
		State:        a.State,
		Content:      a.Content,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toResponses(as []*model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(as))
	for _, a := range as {
		out = append(out, toResponse(a))
	}
	return out
}
