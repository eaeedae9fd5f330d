package cluster

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/ChipCracker/slurm-tui/internal/monitor"
	"github.com/ChipCracker/slurm-tui/internal/pkg/common/paging"
	"github.com/ChipCracker/slurm-tui/internal/pkg/response"
)

// latest returns the current snapshot or replies 503 when no refresh has
// completed yet.
func (rt *Router) latest(c *gin.Context) *monitor.Snapshot {
	snap := rt.refresher.Latest()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, response.Response{Detail: "no snapshot collected yet"})
		return nil
	}
	return snap
}

// HandlerGetSnapshot returns the latest cluster snapshot.
// @Summary Latest cluster snapshot
// @Description Jobs, per-partition gpu allocation and the usage ranking of the most recent refresh. Stale snapshots carry the failure reason.
// @Tags cluster
// @Produce json
// @Success 200 {object} response.Response{results=monitor.Snapshot}
// @Failure 503 {object} response.Response
// @Router /api/v1/cluster/snapshot [get]
func (rt *Router) HandlerGetSnapshot(c *gin.Context) {
	snap := rt.latest(c)
	if snap == nil {
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: snap})
}

// HandlerGetJobs returns the job list of the latest snapshot, optionally paged.
// @Summary Job list
// @Tags cluster
// @Produce json
// @Param paging query bool false "enable paging" default(false)
// @Param page query int false "page, from 1" minimum(1) default(1)
// @Param page_size query int false "items per page, 1-1000" minimum(1) default(50)
// @Success 200 {object} response.Response{results=[]model.Job}
// @Failure 503 {object} response.Response
// @Router /api/v1/cluster/jobs [get]
func (rt *Router) HandlerGetJobs(c *gin.Context) {
	snap := rt.latest(c)
	if snap == nil {
		return
	}

	var pq paging.PagingQuery
	_ = c.ShouldBindQuery(&pq)
	pq.SetDefaults(1, 50, 1000)

	jobs := snap.Jobs
	total := len(jobs)
	var prev, next url.URL
	if pq.Paging {
		lo := (pq.Page - 1) * pq.PageSize
		hi := lo + pq.PageSize
		if lo > total {
			lo = total
		}
		if hi > total {
			hi = total
		}
		jobs = jobs[lo:hi]
		prev, next = response.BuildPageLinks(c.Request.URL, pq.Page, pq.PageSize, total)
	}

	c.JSON(http.StatusOK, response.Response{
		Count:    total,
		Previous: prev,
		Next:     next,
		Results:  jobs,
	})
}

// HandlerGetPartitions returns the live partition table.
// @Summary Partition info
// @Description Node and cpu availability per partition, queried live rather than from the snapshot.
// @Tags cluster
// @Produce json
// @Success 200 {object} response.Response{results=[]model.Partition}
// @Failure 500 {object} response.Response
// @Router /api/v1/cluster/partitions [get]
func (rt *Router) HandlerGetPartitions(c *gin.Context) {
	parts, _, err := rt.slurmc.Partitions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "unable to query partitions: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Count: len(parts), Results: parts})
}

// GPUHours pairs the ranking with the snapshot's staleness marker.
type GPUHours struct {
	Usage []monitor.RankedUsage `json:"usage"`
	Stale bool                  `json:"stale"`
}

// HandlerGetGPUHours returns the per-user gpu-hours ranking.
// @Summary GPU-hours ranking
// @Tags cluster
// @Produce json
// @Success 200 {object} response.Response{results=GPUHours}
// @Failure 503 {object} response.Response
// @Router /api/v1/cluster/gpu-hours [get]
func (rt *Router) HandlerGetGPUHours(c *gin.Context) {
	snap := rt.latest(c)
	if snap == nil {
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: GPUHours{Usage: snap.Usage, Stale: snap.Stale}})
}

// RefreshResult reports one manually triggered refresh.
type RefreshResult struct {
	Generation string `json:"generation"`
	Stale      bool   `json:"stale"`
	Error      string `json:"error,omitempty"`
}

// HandlerRefresh triggers a refresh and waits for it. Concurrent requests
// share the in-flight refresh instead of issuing further scheduler calls.
// @Summary Refresh now
// @Tags cluster
// @Produce json
// @Success 200 {object} response.Response{results=RefreshResult}
// @Router /api/v1/cluster/refresh [post]
func (rt *Router) HandlerRefresh(c *gin.Context) {
	snap, err := rt.refresher.RefreshNow(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "refresh failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: RefreshResult{
		Generation: snap.Generation,
		Stale:      snap.Stale,
		Error:      snap.Err,
	}})
}
