package rest

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// NewRouter wires every endpoint of spec §6 onto a gin engine,
// grounded on the teacher's route-registration convention (one
// handler method per route, request-ID + recovery middleware applied
// globally).
func NewRouter(h *Handlers, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(log), RequestLogger(log))

	r.GET("/healthz", h.HandleHealthz)

	r.POST("/workflows", h.HandleCreateWorkflow)
	r.GET("/workflows/:id", h.HandleGetWorkflow)
	r.POST("/workflows/:id/nodes", h.HandleCreateNode)
	r.POST("/workflows/:id/edges", h.HandleCreateEdge)
	r.GET("/workflows/:id/edges", h.HandleListEdges)
	r.POST("/workflows/:id/run", h.HandleRunWorkflow)
	r.GET("/workflows/:id/runs", h.HandleListRuns)

	r.GET("/jobs/:job_id", h.HandleGetJob)

	r.POST("/files", h.HandleUploadFile)

	return r
}
