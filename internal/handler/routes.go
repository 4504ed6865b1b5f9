package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/pkg/response"
)

// NewRouter wires the health and plan endpoints behind the logging and CORS middleware.
func NewRouter(plans *PlanHandler, health *HealthHandler, log *logrus.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log))

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/plans", plans.CreatePlan).Methods(http.MethodPost)
	api.HandleFunc("/plans", plans.ListPlans).Methods(http.MethodGet)
	api.HandleFunc("/plans/{planId}", plans.GetPlan).Methods(http.MethodGet)
	api.HandleFunc("/plans/{planId}", plans.EditPlan).Methods(http.MethodPatch)
	api.HandleFunc("/plans/{planId}", plans.DeletePlan).Methods(http.MethodDelete)
	api.HandleFunc("/plans/{planId}/export.csv", plans.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/plans/{planId}/installments/{index}/pay", plans.MarkPaid).Methods(http.MethodPost)
	api.HandleFunc("/plans/{planId}/installments/{index}/unpay", plans.MarkUnpaid).Methods(http.MethodPost)
	api.HandleFunc("/plans/{planId}/installments/{index}/paid-date", plans.EditPaidDate).Methods(http.MethodPut)

	api.HandleFunc("/dashboard", plans.Dashboard).Methods(http.MethodGet)
	api.HandleFunc("/payments", plans.Payments).Methods(http.MethodGet)
	api.HandleFunc("/timeline", plans.Timeline).Methods(http.MethodGet)

	// CORS wraps the router so preflight requests are answered before route matching.
	return response.CORSMiddleware(router)
}
