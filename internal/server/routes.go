package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"opsboard/internal/handlers/common"
	"opsboard/internal/handlers/logistics"
	"opsboard/internal/handlers/manufacturing"
	"opsboard/internal/handlers/quality"
	"opsboard/internal/response"
)

// param adapts a handler that takes one path parameter.
func param(name string, fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, chi.URLParam(r, name))
	}
}

// Router builds the HTTP surface: health, the JSON API and the change feed.
func (a *App) Router() http.Handler {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	mfg := &manufacturing.Handler{Store: a.Store, Audit: a.Audit, Log: log}
	lg := &logistics.Handler{Store: a.Store, Audit: a.Audit, Log: log}
	qa := &quality.Handler{Store: a.Store, Audit: a.Audit, Log: log}
	cm := &common.Handler{Store: a.Store, Audit: a.Audit, Log: log}

	var publicKey, serviceKey string
	var origins []string
	if a.Config != nil {
		publicKey, serviceKey = a.Config.Server.PublicKey, a.Config.Server.ServiceKey
		origins = a.Config.Server.AllowedOrigins
		lg.ImportBatchSize = a.Config.Import.BatchSize
		lg.ImportDelay = a.Config.Import.Delay
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(CORS(origins))
	r.Use(SecurityHeaders)
	r.Use(RequireKey(publicKey, serviceKey))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Store.Ping(r.Context()); err != nil {
			response.Err(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		response.JSON(w, map[string]interface{}{"status": "ok", "clients": a.Hub.Clients()})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", a.Hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(GzipMiddleware)

			r.Get("/dashboard", mfg.Dashboard)
			r.Get("/audit", cm.ListAudit)
			r.Get("/export/{entity}", param("entity", cm.Export))

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", mfg.ListJobs)
				r.Post("/", mfg.CreateJob)
				r.Get("/overdue", mfg.OverdueJobs)
				r.Route("/{job}", func(r chi.Router) {
					r.Get("/", param("job", mfg.GetJob))
					r.Put("/", param("job", mfg.UpdateJob))
					r.Put("/status", param("job", mfg.UpdateJobStatus))
					r.Put("/progress", param("job", mfg.UpdateJobProgress))
					r.Post("/notes", param("job", mfg.AddNote))
					r.Post("/reminders", param("job", mfg.AddReminder))
					r.Get("/timeline", param("job", mfg.Timeline))
					r.Post("/timeline", param("job", mfg.AddTimelineEvent))
					r.Get("/operations", param("job", mfg.JobOperations))
					r.Get("/summary", param("job", mfg.JobSummary))
					r.Get("/vendor-operations", param("job", lg.ListVendorOperations))
					r.Post("/vendor-operations", param("job", lg.UpsertVendorOperation))
				})
			})

			r.Put("/operations/{order}/{op}/actual", func(w http.ResponseWriter, r *http.Request) {
				mfg.UpdateActualWork(w, r, chi.URLParam(r, "order"), chi.URLParam(r, "op"))
			})

			r.Route("/work-centers", func(r chi.Router) {
				r.Get("/", mfg.ListWorkCenters)
				r.Post("/refresh", mfg.RefreshWorkCenters)
				r.Get("/{name}", param("name", mfg.GetWorkCenter))
			})

			r.Route("/purchase-orders", func(r chi.Router) {
				r.Get("/", lg.ListPurchaseOrders)
				r.Post("/", lg.UpsertPurchaseOrder)
				r.Post("/import", lg.ImportPurchaseOrders)
				r.Post("/link", lg.LinkPurchaseOrders)
				r.Get("/{po}", param("po", lg.GetPurchaseOrder))
			})

			r.Route("/shipments", func(r chi.Router) {
				r.Get("/", lg.ListShipments)
				r.Post("/", lg.CreateShipment)
				r.Put("/{id}/status", param("id", lg.UpdateShipmentStatus))
			})

			r.Route("/ncrs", func(r chi.Router) {
				r.Get("/", qa.ListNCRs)
				r.Post("/", qa.CreateNCR)
				r.Get("/{id}", param("id", qa.GetNCR))
				r.Put("/{id}", param("id", qa.UpdateNCR))
			})
			r.Get("/reports/ncr-summary", qa.Summary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}
