package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))

	// Graph checks
	mux.Handle("POST /api/v1/validate", chain(http.HandlerFunc(h.ValidateGraph)))
	mux.Handle("GET /api/v1/flows/{id}/validate", chain(http.HandlerFunc(h.ValidateFlow)))
	mux.Handle("GET /api/v1/flows/{id}/order", chain(http.HandlerFunc(h.FlowOrder)))

	// Синхронное выполнение (NDJSON)
	mux.Handle("POST /api/v1/flows/{id}/execute", chain(http.HandlerFunc(h.ExecuteFlow)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/flows/{id}/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("POST /api/v1/runs/{id}/retry", chain(http.HandlerFunc(h.RetryRun)))
	mux.Handle("GET /api/v1/runs/{id}/events", chain(http.HandlerFunc(h.RunEvents)))
}
