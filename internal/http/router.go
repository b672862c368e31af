package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"coffee-backend/internal/handlers"
	"coffee-backend/internal/middleware"
)

type Handlers struct {
	Requests  *handlers.RequestHandler
	Accounts  *handlers.AccountHandler
	Batches   *handlers.BatchHandler
	Employees *handlers.EmployeeHandler
	Outbox    *handlers.OutboxHandler
	Health    *handlers.HealthHandler
	Realtime  http.HandlerFunc
}

func NewRouter(h Handlers, authMiddleware *middleware.AuthMiddleware, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.APILogging(log))

	// Public routes - probes and scrapes
	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", h.Health.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", h.Health.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	if h.Realtime != nil {
		r.Handle("/ws", middleware.TokenFromQuery(authMiddleware.Authenticate(h.Realtime))).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Approval requests
	api.HandleFunc("/requests", h.Requests.Submit).Methods("POST")
	api.HandleFunc("/requests/{kind}", h.Requests.List).Methods("GET")
	api.HandleFunc("/requests/{kind}/{id:[0-9]+}", h.Requests.Get).Methods("GET")
	api.HandleFunc("/requests/{kind}/{id:[0-9]+}/approvals", h.Requests.RecordApproval).Methods("POST")

	// Balance accounts
	api.HandleFunc("/accounts", h.Accounts.Open).Methods("POST")
	api.HandleFunc("/accounts", h.Accounts.List).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.Get).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}/payments", h.Accounts.ListPayments).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}/payments", h.Accounts.ApplyPayment).Methods("POST")

	// Inventory batches and allocations
	api.HandleFunc("/batches", h.Batches.Create).Methods("POST")
	api.HandleFunc("/batches", h.Batches.List).Methods("GET")
	api.HandleFunc("/batches/{id:[0-9]+}", h.Batches.Get).Methods("GET")
	api.HandleFunc("/batches/{id:[0-9]+}/sources", h.Batches.AddSource).Methods("POST")
	api.HandleFunc("/allocations", h.Batches.Allocate).Methods("POST")
	api.HandleFunc("/allocations/{id}/receipt", h.Batches.Receipt).Methods("GET")

	// Employees
	api.HandleFunc("/employees", h.Employees.Upsert).Methods("POST")
	api.HandleFunc("/employees", h.Employees.List).Methods("GET")
	api.HandleFunc("/employees/{id:[0-9]+}", h.Employees.Get).Methods("GET")
	api.HandleFunc("/employees/{id:[0-9]+}/permissions", h.Employees.UpdatePermissions).Methods("PUT")

	// Admin-only maintenance
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.RequireAdmin)
	admin.HandleFunc("/employees/resync", h.Employees.Resync).Methods("POST")
	admin.HandleFunc("/outbox/redeliver", h.Outbox.Redeliver).Methods("POST")

	return r
}
