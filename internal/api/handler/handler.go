package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"punch.service/internal/core/model"
	"punch.service/pkg/apperr"
)

// PunchService is what the HTTP layer needs from core.PunchService.
type PunchService interface {
	RecordPunch(ctx context.Context, tenant, badge string) (*model.PunchOutcome, error)
	RecordBadgeScan(ctx context.Context, badge string) (*model.PunchOutcome, error)
	ListHistory(ctx context.Context, tenant, badge string) ([]model.PunchRecord, error)
	ListTenantHistory(ctx context.Context, tenant string) ([]model.PunchRecord, error)
	EndOfShift(ctx context.Context, tenant string) (model.TimeOfDay, error)
	SetEndOfShift(ctx context.Context, tenant, value string) (model.TimeOfDay, error)
}

type AttendanceHandler struct {
	Service PunchService
}

type AttendanceRequest struct {
	Subdomain string `json:"subdomain"`
	RFID      string `json:"rfid"`
}

type BadgeScanRequest struct {
	RFID string `json:"rfid"`
}

type EndOfShiftRequest struct {
	EndOfShift string `json:"endOfShift"`
}

type EndOfShiftResponse struct {
	Subdomain  string          `json:"subdomain"`
	EndOfShift model.TimeOfDay `json:"endOfShift"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// PutAttendance records a scan from a reader bound to a company.
func (h *AttendanceHandler) PutAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeValidation, "Invalid request body"))
		return
	}

	out, err := h.Service.RecordPunch(r.Context(), req.Subdomain, req.RFID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// PutBadgeScan records a scan from a reader that only knows the badge.
func (h *AttendanceHandler) PutBadgeScan(w http.ResponseWriter, r *http.Request) {
	var req BadgeScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeValidation, "Invalid request body"))
		return
	}

	out, err := h.Service.RecordBadgeScan(r.Context(), req.RFID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *AttendanceHandler) GetTenantAttendance(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Service.ListTenantHistory(r.Context(), mux.Vars(r)["subdomain"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func (h *AttendanceHandler) GetWorkerAttendance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	recs, err := h.Service.ListHistory(r.Context(), vars["subdomain"], vars["rfid"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func (h *AttendanceHandler) GetEndOfShift(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["subdomain"]
	t, err := h.Service.EndOfShift(r.Context(), tenant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EndOfShiftResponse{Subdomain: tenant, EndOfShift: t})
}

func (h *AttendanceHandler) PutEndOfShift(w http.ResponseWriter, r *http.Request) {
	var req EndOfShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeValidation, "Invalid request body"))
		return
	}

	tenant := mux.Vars(r)["subdomain"]
	t, err := h.Service.SetEndOfShift(r.Context(), tenant, req.EndOfShift)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EndOfShiftResponse{Subdomain: tenant, EndOfShift: t})
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, ErrorResponse{Message: apperr.MessageOf(err), Error: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func nonNil(recs []model.PunchRecord) []model.PunchRecord {
	if recs == nil {
		return []model.PunchRecord{}
	}
	return recs
}
