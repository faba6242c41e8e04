package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// AppointmentNotice is the data rendered into appointment emails.
type AppointmentNotice struct {
	PatientName string
	DoctorName  string
	RoomCode    string
	Date        string
	Start       string
	End         string
	State       model.AppointmentState
	Reason      string
}

var subjects = map[string]string{
	model.EventAppointmentCreated:     "Your appointment request was received",
	model.EventAppointmentRescheduled: "Your appointment was rescheduled",
	model.EventAppointmentConfirmed:   "Your appointment is confirmed",
	model.EventAppointmentCompleted:   "Thank you for your visit",
	model.EventAppointmentCancelled:   "Your appointment was cancelled",
	model.EventAppointmentReassigned:  "Your appointment has a new doctor",
}

var appointmentTmpl = template.Must(template.New("appointment").Parse(`<p>Dear {{.PatientName}},</p>
<p>Your appointment on <b>{{.Date}}</b> from {{.Start}} to {{.End}} in room {{.RoomCode}}
{{- if .DoctorName}} with Dr. {{.DoctorName}}{{end}} is now <b>{{.State}}</b>.</p>
{{- if .Reason}}
<p>Reason: {{.Reason}}</p>
{{- end}}
<p>Clinic front desk</p>`))

// RenderAppointment returns the subject and HTML body for eventType.
func RenderAppointment(eventType string, notice AppointmentNotice) (string, string, error) {
	subject, ok := subjects[eventType]
	if !ok {
		return "", "", fmt.Errorf("no template for event type %q", eventType)
	}

	var buf bytes.Buffer
	if err := appointmentTmpl.Execute(&buf, notice); err != nil {
		return "", "", fmt.Errorf("failed to render %s email: %w", eventType, err)
	}
	return subject, buf.String(), nil
}

// DoctorNotice is the data rendered into doctor registration emails.
type DoctorNotice struct {
	DoctorName string
	Email      string
	Major      string
}

var doctorSubjects = map[string]string{
	model.EventDoctorRequested: "New doctor registration awaiting review",
	model.EventDoctorVerified:  "Your doctor account was approved",
}

var doctorTmpls = map[string]*template.Template{
	model.EventDoctorRequested: template.Must(template.New("doctor.requested").Parse(`<p>{{.DoctorName}}
{{- if .Email}} ({{.Email}}){{end}} asked to join the clinic as a doctor
{{- if .Major}} specialising in {{.Major}}{{end}}.</p>
<p>Review and verify the request before the doctor can be booked.</p>`)),
	model.EventDoctorVerified: template.Must(template.New("doctor.verified").Parse(`<p>Dear Dr. {{.DoctorName}},</p>
<p>Your registration was approved. Patients can now book appointments with you.</p>
<p>Clinic front desk</p>`)),
}

// RenderDoctor returns the subject and HTML body for a doctor event.
func RenderDoctor(eventType string, notice DoctorNotice) (string, string, error) {
	tmpl, ok := doctorTmpls[eventType]
	if !ok {
		return "", "", fmt.Errorf("no template for event type %q", eventType)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, notice); err != nil {
		return "", "", fmt.Errorf("failed to render %s email: %w", eventType, err)
	}
	return doctorSubjects[eventType], buf.String(), nil
}
