package api

import (
	"go-refine-pipeline/internal/api/handler"
	"go-refine-pipeline/pkg/router"
)

// RegisterRoutes wires the monitoring endpoints onto the router.
func RegisterRoutes(r *router.Router) {
	r.GET("/api/v1/runs", handler.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/files", handler.GetRunFiles)
	r.GET("/api/v1/runs/*/errors", handler.GetRunErrors)
	r.GET("/api/v1/runs/*/logs", handler.GetRunLogs)
	r.GET("/api/v1/runs/*/results", handler.GetRunResults)
	// Generic run route last
	r.GET("/api/v1/runs/*", handler.GetRun)
}
