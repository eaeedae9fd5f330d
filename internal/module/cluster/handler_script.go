package cluster

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChipCracker/slurm-tui/internal/pkg/response"
	"github.com/ChipCracker/slurm-tui/internal/script"
)

// EditRequest names the target script and the directive values to impose.
// Omitted fields leave the script untouched.
type EditRequest struct {
	Path      string `json:"path" binding:"required"`
	Partition string `json:"partition"`
	QoS       string `json:"qos"`
	GPUs      *int   `json:"gpus"`
	CPUs      *int   `json:"cpus"`
	Memory    string `json:"memory"`
	JobName   string `json:"job_name"`
}

// EditResult reports what the mutation did.
type EditResult struct {
	Changed bool   `json:"changed"`
	Backup  string `json:"backup,omitempty"`
}

// HandlerEditScript applies directive edits to a submission script.
// @Summary Edit submission script directives
// @Description Updates directives in place, inserting missing ones after the last directive line. The pre-edit file is kept as a timestamped backup; a failed edit leaves the original untouched.
// @Tags cluster
// @Accept json
// @Produce json
// @Param request body EditRequest true "edit request"
// @Success 200 {object} response.Response{results=EditResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/cluster/scripts/edit [post]
func (rt *Router) HandlerEditScript(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "missing script path"})
		return
	}

	changed, backup, err := rt.mutator.Apply(req.Path, script.Request{
		Partition: req.Partition,
		QoS:       req.QoS,
		GPUs:      req.GPUs,
		CPUs:      req.CPUs,
		Memory:    req.Memory,
		JobName:   req.JobName,
	})
	if err != nil {
		var me *script.MutationError
		if errors.As(err, &me) && me.Kind == script.ConflictingDirectives {
			c.JSON(http.StatusConflict, response.Response{Detail: me.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: EditResult{Changed: changed, Backup: backup}})
}
