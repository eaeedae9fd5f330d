package cluster

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChipCracker/slurm-tui/internal/bookmarks"
	"github.com/ChipCracker/slurm-tui/internal/pkg/response"
)

// Bookmarks is the full bookmark listing.
type Bookmarks struct {
	Jobs    []bookmarks.JobBookmark    `json:"jobs"`
	Scripts []bookmarks.ScriptBookmark `json:"scripts"`
}

// HandlerGetBookmarks lists job and script bookmarks.
// @Summary List bookmarks
// @Tags bookmarks
// @Produce json
// @Success 200 {object} response.Response{results=Bookmarks}
// @Router /api/v1/cluster/bookmarks [get]
func (rt *Router) HandlerGetBookmarks(c *gin.Context) {
	c.JSON(http.StatusOK, response.Response{Results: Bookmarks{
		Jobs:    rt.books.Jobs(),
		Scripts: rt.books.Scripts(),
	}})
}

// JobBookmarkRequest adds one job bookmark.
type JobBookmarkRequest struct {
	JobID string `json:"job_id" binding:"required"`
	Name  string `json:"name"`
}

// HandlerAddJobBookmark bookmarks a job; adding twice is a no-op.
// @Summary Bookmark a job
// @Tags bookmarks
// @Accept json
// @Produce json
// @Param request body JobBookmarkRequest true "job"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/cluster/bookmarks/jobs [post]
func (rt *Router) HandlerAddJobBookmark(c *gin.Context) {
	var req JobBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "missing job_id"})
		return
	}
	if !rt.books.AddJob(req.JobID, req.Name) {
		c.JSON(http.StatusOK, response.Response{Detail: "already bookmarked"})
		return
	}
	c.JSON(http.StatusOK, response.Response{})
}

// HandlerRemoveJobBookmark drops a job bookmark.
// @Summary Remove a job bookmark
// @Tags bookmarks
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/cluster/bookmarks/jobs/{id} [delete]
func (rt *Router) HandlerRemoveJobBookmark(c *gin.Context) {
	if !rt.books.RemoveJob(c.Param("id")) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "not bookmarked"})
		return
	}
	c.JSON(http.StatusOK, response.Response{})
}

// ScriptBookmarkRequest names one script path.
type ScriptBookmarkRequest struct {
	Path string `json:"path" binding:"required"`
}

// HandlerAddScriptBookmark bookmarks a script path.
// @Summary Bookmark a script
// @Tags bookmarks
// @Accept json
// @Produce json
// @Param request body ScriptBookmarkRequest true "script path"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/cluster/bookmarks/scripts [post]
func (rt *Router) HandlerAddScriptBookmark(c *gin.Context) {
	var req ScriptBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "missing path"})
		return
	}
	if !rt.books.AddScript(req.Path) {
		c.JSON(http.StatusOK, response.Response{Detail: "already bookmarked"})
		return
	}
	c.JSON(http.StatusOK, response.Response{})
}

// HandlerRemoveScriptBookmark drops a script bookmark; the path comes from
// the query because script paths do not fit a path segment.
// @Summary Remove a script bookmark
// @Tags bookmarks
// @Produce json
// @Param path query string true "script path"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/cluster/bookmarks/scripts [delete]
func (rt *Router) HandlerRemoveScriptBookmark(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "missing path"})
		return
	}
	if !rt.books.RemoveScript(path) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "not bookmarked"})
		return
	}
	c.JSON(http.StatusOK, response.Response{})
}
