package cluster

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChipCracker/slurm-tui/internal/bookmarks"
	"github.com/ChipCracker/slurm-tui/internal/monitor"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm"
	"github.com/ChipCracker/slurm-tui/internal/script"
)

type Router struct {
	refresher *monitor.Refresher
	mutator   *script.Engine
	slurmc    *slurm.Client
	books     *bookmarks.Manager
	logger    *slog.Logger
}

func NewRouter(refresher *monitor.Refresher, mutator *script.Engine, slurmc *slurm.Client, books *bookmarks.Manager, logger *slog.Logger) *Router {
	return &Router{
		refresher: refresher,
		mutator:   mutator,
		slurmc:    slurmc,
		books:     books,
		logger:    logger,
	}
}

func (rt *Router) Register(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1/")
	{
		g := v1.Group("/cluster")
		g.GET("/snapshot", rt.HandlerGetSnapshot)     // GET  /api/v1/cluster/snapshot
		g.GET("/jobs", rt.HandlerGetJobs)             // GET  /api/v1/cluster/jobs
		g.GET("/partitions", rt.HandlerGetPartitions) // GET  /api/v1/cluster/partitions
		g.GET("/gpu-hours", rt.HandlerGetGPUHours)    // GET  /api/v1/cluster/gpu-hours
		g.POST("/refresh", rt.HandlerRefresh)         // POST /api/v1/cluster/refresh
		g.POST("/jobs/:id/cancel", rt.HandlerCancelJob)
		g.POST("/jobs/:id/attach", rt.HandlerAttachJob)
		g.GET("/jobs/:id/logs", rt.HandlerGetJobLogs)
		g.POST("/jobs/submit", rt.HandlerSubmitJob)
		g.POST("/scripts/edit", rt.HandlerEditScript)
		g.GET("/bookmarks", rt.HandlerGetBookmarks)
		g.POST("/bookmarks/jobs", rt.HandlerAddJobBookmark)
		g.DELETE("/bookmarks/jobs/:id", rt.HandlerRemoveJobBookmark)
		g.POST("/bookmarks/scripts", rt.HandlerAddScriptBookmark)
		g.DELETE("/bookmarks/scripts", rt.HandlerRemoveScriptBookmark)
	}
}
