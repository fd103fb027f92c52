package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in, ok := buildCreateInput(w, req)
		if !ok {
			return
		}

		appt, err := svc.Create(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func buildCreateInput(w http.ResponseWriter, req CreateAppointmentRequest) (scheduling.CreateInput, bool) {
	var in scheduling.CreateInput

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return in, false
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
		return in, false
	}
	specializationID, err := uuid.Parse(req.SpecializationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_specialization_id", "specialization_id must be a valid UUID")
		return in, false
	}

	var clinicID *uuid.UUID
	if req.ClinicID != nil {
		id, err := uuid.Parse(*req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return in, false
		}
		clinicID = &id
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return in, false
	}

	tod, err := scheduling.ParseTimeOfDay(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
		return in, false
	}

	var fee *decimal.Decimal
	if req.Fee != nil {
		f, err := decimal.NewFromString(*req.Fee)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_fee", "fee must be a decimal number")
			return in, false
		}
		fee = &f
	}

	in = scheduling.CreateInput{
		PatientID:        patientID,
		ProviderID:       providerID,
		SpecializationID: specializationID,
		ClinicID:         clinicID,
		Date:             date,
		Time:             tod,
		Type:             scheduling.AppointmentType(req.Type),
		Fee:              fee,
		Notes:            req.Notes,
	}
	return in, true
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := time.Now()
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			date = parsed
		}

		appts, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in, ok := buildUpdateInput(w, req)
		if !ok {
			return
		}

		appt, err := svc.Update(r.Context(), id, in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func buildUpdateInput(w http.ResponseWriter, req UpdateAppointmentRequest) (scheduling.UpdateInput, bool) {
	var in scheduling.UpdateInput

	if req.ProviderID != nil {
		id, err := uuid.Parse(*req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return in, false
		}
		in.ProviderID = &id
	}
	if req.SpecializationID != nil {
		id, err := uuid.Parse(*req.SpecializationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialization_id", "specialization_id must be a valid UUID")
			return in, false
		}
		in.SpecializationID = &id
	}
	if req.Date != nil {
		date, err := time.ParseInLocation("2006-01-02", *req.Date, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return in, false
		}
		in.Date = &date
	}
	if req.Time != nil {
		tod, err := scheduling.ParseTimeOfDay(*req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return in, false
		}
		in.Time = &tod
	}
	if req.Type != nil {
		t := scheduling.AppointmentType(*req.Type)
		in.Type = &t
	}
	if req.Fee != nil {
		f, err := decimal.NewFromString(*req.Fee)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_fee", "fee must be a decimal number")
			return in, false
		}
		in.Fee = &f
	}
	in.Notes = req.Notes

	return in, true
}

func deleteAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func confirmAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(svc.Confirm)
}

func checkInAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(svc.CheckIn)
}

func completeAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(svc.Complete)
}

func transitionHandler(apply func(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := apply(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availableSlotsHandler(calc *scheduling.AvailabilityCalculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		raw := r.URL.Query().Get("date")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}
		date, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := calc.SlotList(r.Context(), providerID, date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{
				Date:      s.Date.Format("2006-01-02"),
				Time:      s.Time.String(),
				Remaining: s.Remaining,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func upcomingAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		days := 7
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_days", "days must be a positive integer")
				return
			}
			days = n
		}

		appts, err := svc.ListUpcoming(r.Context(), providerID, days)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func dailyStatisticsHandler(stats *scheduling.StatsAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := time.Now()
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			date = parsed
		}

		s, err := stats.DailyStatistics(r.Context(), date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DailyStatisticsResponse{
			Date:      s.Date.Format("2006-01-02"),
			Total:     s.Total,
			Completed: s.Completed,
			Cancelled: s.Cancelled,
			Pending:   s.Pending,
		})
	}
}

func weeklyStatisticsHandler(stats *scheduling.StatsAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		weekOf := time.Now()
		if raw := r.URL.Query().Get("week_of"); raw != "" {
			parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_week_of", "week_of must be YYYY-MM-DD")
				return
			}
			weekOf = parsed
		}

		week, err := stats.WeeklyStatistics(r.Context(), weekOf)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]DayCountResponse, 0, len(week))
		for _, dc := range week {
			resp = append(resp, DayCountResponse{Date: dc.Date.Format("2006-01-02"), Count: dc.Count})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrCancellationWindow):
		writeError(w, http.StatusConflict, "cancellation_window_expired", err.Error())
	case errors.Is(err, scheduling.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date_not_allowed", err.Error())
	case errors.Is(err, scheduling.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
