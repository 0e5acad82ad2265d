package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
)

// respondOutcome writes a lifecycle outcome. Refusals are outcomes, so they
// are returned with 200 and ok=false.
func (r *Router) respondOutcome(c *gin.Context, operation string, out lifecycle.Outcome, err error) {
	if err != nil {
		handleError(c, err, "entry", operation)
		return
	}
	r.deps.Metrics.LifecycleOutcome(operation, string(out.Reason))
	c.JSON(http.StatusOK, out)
}

// POST /api/v1/entries/:id/lock
func (r *Router) lock(c *gin.Context) {
	out, err := r.deps.Lifecycle.Lock(c.Request.Context(), c.Param("id"))
	r.respondOutcome(c, "lock", out, err)
}

// POST /api/v1/entries/:id/unlock
func (r *Router) unlock(c *gin.Context) {
	out, err := r.deps.Lifecycle.Unlock(c.Request.Context(), c.Param("id"))
	r.respondOutcome(c, "unlock", out, err)
}

// POST /api/v1/entries/:id/decline
func (r *Router) decline(c *gin.Context) {
	out, err := r.deps.Lifecycle.Decline(c.Request.Context(), c.Param("id"))
	r.respondOutcome(c, "decline", out, err)
}

// POST /api/v1/entries/:id/assign
func (r *Router) assign(c *gin.Context) {
	var user domain.User
	if !bindJSON(c, &user) {
		return
	}
	out, err := r.deps.Lifecycle.Assign(c.Request.Context(), c.Param("id"), user)
	r.respondOutcome(c, "assign", out, err)
}

// DELETE /api/v1/entries/:id/assignee
func (r *Router) unassign(c *gin.Context) {
	out, err := r.deps.Lifecycle.Unassign(c.Request.Context(), c.Param("id"))
	r.respondOutcome(c, "unassign", out, err)
}

type submitRequest struct {
	ContentLocation string             `binding:"required" json:"content_location"`
	Extent          *domain.Extent     `json:"extent"`
	Attributes      []domain.Attribute `json:"attributes"`
}

// submit stores new content for an entry and activates it.
// POST /api/v1/entries/:id/submissions
func (r *Router) submit(c *gin.Context) {
	var req submitRequest
	if !bindJSON(c, &req) {
		return
	}

	content := domain.Content{Location: req.ContentLocation, Extent: req.Extent}
	sub, out, err := r.deps.Lifecycle.Submit(c.Request.Context(), c.Param("id"), content, req.Attributes)
	if err != nil {
		handleError(c, err, "entry", "submit")
		return
	}
	r.deps.Metrics.LifecycleOutcome("submit", string(out.Reason))
	c.JSON(http.StatusCreated, gin.H{"submission": sub, "outcome": out})
}

// POST /api/v1/entries/:id/submissions/:submission_id/activate
func (r *Router) activate(c *gin.Context) {
	out, err := r.deps.Lifecycle.Activate(c.Request.Context(), c.Param("id"), c.Param("submission_id"))
	if err != nil {
		handleError(c, err, "submission", "activate")
		return
	}
	r.deps.Metrics.LifecycleOutcome("activate", string(out.Reason))
	c.JSON(http.StatusOK, out)
}
