package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"punch.service/internal/api/handler"
)

const apiPrefix = "/api/v1"

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(service handler.PunchService, checks map[string]HealthCheck) *mux.Router {
	attendance := handler.AttendanceHandler{
		Service: service,
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Routes hang off the root router: a method mismatch inside a mux
	// subrouter is reported as 404 instead of 405.
	r.HandleFunc(apiPrefix+"/attendance", attendance.PutAttendance).Methods(http.MethodPut)
	r.HandleFunc(apiPrefix+"/rfid-attendance", attendance.PutBadgeScan).Methods(http.MethodPut)
	r.HandleFunc(apiPrefix+"/attendance/{subdomain}", attendance.GetTenantAttendance).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/attendance/{subdomain}/workers/{rfid}", attendance.GetWorkerAttendance).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/settings/{subdomain}/end-of-shift", attendance.GetEndOfShift).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/settings/{subdomain}/end-of-shift", attendance.PutEndOfShift).Methods(http.MethodPut)
	r.HandleFunc(apiPrefix+"/health", healthHandler(checks)).Methods(http.MethodGet)

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(name + " is unavailable."))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Service is operational."))
	}
}
