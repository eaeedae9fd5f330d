package cluster

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChipCracker/slurm-tui/internal/action"
	"github.com/ChipCracker/slurm-tui/internal/pkg/response"
)

// requestPrompter satisfies action.Prompter with the confirmation carried
// by the request itself; the HTTP surface has no interactive channel.
type requestPrompter struct {
	confirmed bool
}

func (p requestPrompter) Confirm(context.Context, string) (bool, error) {
	return p.confirmed, nil
}

// ActionRequest carries the explicit confirmation for a job action.
type ActionRequest struct {
	Confirm bool `json:"confirm"`
}

func actionStatus(c *gin.Context, pa *action.PendingAction, err error) {
	if err != nil {
		var ae *action.ActionError
		var se *action.SelectionError
		switch {
		case errors.As(err, &ae):
			c.JSON(http.StatusConflict, response.Response{Detail: ae.Error()})
		case errors.As(err, &se):
			c.JSON(http.StatusBadRequest, response.Response{Detail: se.Error()})
		default:
			c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: pa})
}

// HandlerCancelJob cancels a job after re-validating it still exists.
// @Summary Cancel a job
// @Description Requires confirm=true in the body; without it the action aborts with no side effects.
// @Tags cluster
// @Accept json
// @Produce json
// @Param id path string true "job id or 1-based list ordinal"
// @Param request body ActionRequest true "confirmation"
// @Success 200 {object} response.Response{results=action.PendingAction}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/cluster/jobs/{id}/cancel [post]
func (rt *Router) HandlerCancelJob(c *gin.Context) {
	snap := rt.latest(c)
	if snap == nil {
		return
	}
	var req ActionRequest
	_ = c.ShouldBindJSON(&req)

	coordinator := action.NewCoordinator(rt.slurmc, requestPrompter{confirmed: req.Confirm}, rt.logger)
	pa, err := coordinator.Cancel(c.Request.Context(), snap.Jobs, c.Param("id"))
	actionStatus(c, pa, err)
}

// HandlerAttachJob validates a job and returns the attach command line.
// @Summary Attach command for a running job
// @Tags cluster
// @Accept json
// @Produce json
// @Param id path string true "job id or 1-based list ordinal"
// @Param request body ActionRequest true "confirmation"
// @Success 200 {object} response.Response{results=action.PendingAction}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/cluster/jobs/{id}/attach [post]
func (rt *Router) HandlerAttachJob(c *gin.Context) {
	snap := rt.latest(c)
	if snap == nil {
		return
	}
	var req ActionRequest
	_ = c.ShouldBindJSON(&req)

	coordinator := action.NewCoordinator(rt.slurmc, requestPrompter{confirmed: req.Confirm}, rt.logger)
	pa, err := coordinator.Attach(c.Request.Context(), snap.Jobs, c.Param("id"))
	actionStatus(c, pa, err)
}

// JobLogs are the scheduler-reported log paths of a job.
type JobLogs struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// HandlerGetJobLogs returns the stdout/stderr log paths of a job.
// @Summary Job log paths
// @Tags cluster
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} response.Response{results=JobLogs}
// @Failure 500 {object} response.Response
// @Router /api/v1/cluster/jobs/{id}/logs [get]
func (rt *Router) HandlerGetJobLogs(c *gin.Context) {
	stdout, stderr, err := rt.slurmc.JobLogPaths(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "unable to query job details: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: JobLogs{Stdout: stdout, Stderr: stderr}})
}

// SubmitRequest names the script to submit.
type SubmitRequest struct {
	Path string `json:"path" binding:"required"`
}

// SubmitResult carries the new job id.
type SubmitResult struct {
	JobID string `json:"job_id"`
}

// HandlerSubmitJob submits a batch script.
// @Summary Submit a batch script
// @Tags cluster
// @Accept json
// @Produce json
// @Param request body SubmitRequest true "script path"
// @Success 200 {object} response.Response{results=SubmitResult}
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/cluster/jobs/submit [post]
func (rt *Router) HandlerSubmitJob(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "missing script path"})
		return
	}
	id, err := rt.slurmc.Submit(c.Request.Context(), req.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "submission failed: " + err.Error()})
		return
	}
	// The next refresh picks the job up; nudge it along.
	rt.refresher.Trigger()
	c.JSON(http.StatusOK, response.Response{Results: SubmitResult{JobID: id}})
}
