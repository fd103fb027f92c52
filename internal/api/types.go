package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

type CreateAppointmentRequest struct {
	PatientID        string  `json:"patient_id"`
	ProviderID       string  `json:"provider_id"`
	SpecializationID string  `json:"specialization_id"`
	ClinicID         *string `json:"clinic_id,omitempty"`
	Date             string  `json:"date"` // YYYY-MM-DD
	Time             string  `json:"time"` // HH:MM
	Type             string  `json:"type"`
	Fee              *string `json:"fee,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	ProviderID       *string `json:"provider_id,omitempty"`
	SpecializationID *string `json:"specialization_id,omitempty"`
	Date             *string `json:"date,omitempty"`
	Time             *string `json:"time,omitempty"`
	Type             *string `json:"type,omitempty"`
	Fee              *string `json:"fee,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	ProviderID         uuid.UUID  `json:"provider_id"`
	SpecializationID   uuid.UUID  `json:"specialization_id"`
	ClinicID           *uuid.UUID `json:"clinic_id,omitempty"`
	Date               string     `json:"date"`
	Time               string     `json:"time"`
	Status             string     `json:"status"`
	Type               string     `json:"type"`
	Notes              *string    `json:"notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	Fee                string     `json:"fee"`
	IsPaid             bool       `json:"is_paid"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ProviderID:         a.ProviderID,
		SpecializationID:   a.SpecializationID,
		ClinicID:           a.ClinicID,
		Date:               a.Date.Format("2006-01-02"),
		Time:               a.Time.String(),
		Status:             string(a.Status),
		Type:               string(a.Type),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		Fee:                a.Fee.StringFixed(2),
		IsPaid:             a.IsPaid,
		CheckedInAt:        a.CheckedInAt,
		CompletedAt:        a.CompletedAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type SlotResponse struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Remaining int    `json:"remaining"`
}

type DailyStatisticsResponse struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Cancelled int    `json:"cancelled"`
	Pending   int    `json:"pending"`
}

type DayCountResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
