/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the planning UI

ROUTE GROUPS:
  /api/plans/*          Plan generation, manual edits
  /api/operators/*      Operators and operator pay
  /api/roles/*          Management role pay
  /api/revenue          Revenue intake
  /api/adjustments      Adjustment ledger
  /api/weekly-debts/*   Weekly debt ledger and status
  /api/salary-rules     Rule-set documents
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries the settings the router needs beyond the handler.
type RouterOptions struct {
	AllowedOrigins []string

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Plan routes
		r.Route("/plans/{month}", func(r chi.Router) {
			r.Get("/", h.GetPlan)
			r.Post("/generate", h.GeneratePlan)
			r.Put("/rows", h.EditPlanRow)
			r.Post("/rows/unlock", h.UnlockPlanRow)
		})

		// Operator routes
		r.Route("/operators", func(r chi.Router) {
			r.Get("/", h.ListOperators)
			r.Post("/", h.CreateOperator)
			r.Get("/{id}/pay", h.GetOperatorPay)
		})

		r.Get("/roles/{role}/pay", h.GetRolePay)

		// Ledger and intake routes
		r.Post("/revenue", h.CreateRevenue)
		r.Post("/adjustments", h.CreateAdjustment)
		r.Post("/weekly-debts", h.CreateWeeklyDebt)
		r.Post("/weekly-debts/{id}/status", h.SetWeeklyDebtStatus)

		// Salary rule routes
		r.Route("/salary-rules", func(r chi.Router) {
			r.Get("/", h.ListSalaryRules)
			r.Post("/", h.UploadSalaryRules)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Payplan</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Payplan API</h1>
<h2>API Endpoints</h2>
<ul>
<li>/api/plans/{YYYY-MM} - Stored plan of a month</li>
<li>/api/operators/{id}/pay?month=YYYY-MM - Operator pay</li>
<li><a href="/api/salary-rules">/api/salary-rules</a> - Salary rules</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`))
	})

	return r
}
