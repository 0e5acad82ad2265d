package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

type createEntryRequest struct {
	Name        string                 `binding:"required" json:"name"`
	Description string                 `json:"description"`
	Kind        domain.EntryKind       `binding:"required" json:"kind"`
	QueryURL    *string                `json:"query_url"`
	Symbology   *string                `json:"symbology"`
	EditorIDs   []string               `json:"editor_ids"`
	Recurrence  *domain.RecurrenceSpec `json:"recurrence"`
}

// createEntry creates an entry in the new_draft state.
// POST /api/v1/entries
func (r *Router) createEntry(c *gin.Context) {
	var req createEntryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := domain.NewEntry(req.Name, req.Kind)
	if err != nil {
		handleError(c, err, "entry", "create")
		return
	}
	entry.Description = req.Description
	entry.QueryURL = req.QueryURL
	entry.Symbology = req.Symbology
	if req.EditorIDs != nil {
		entry.EditorIDs = req.EditorIDs
	}
	if err = entry.SetRecurrence(req.Recurrence); err != nil {
		handleError(c, err, "entry", "create")
		return
	}

	if err = r.deps.Entries.Create(c.Request.Context(), entry); err != nil {
		handleError(c, err, "entry", "create")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// getEntry returns one entry.
// GET /api/v1/entries/:id
func (r *Router) getEntry(c *gin.Context) {
	entry, err := r.deps.Entries.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, "entry", "get")
		return
	}
	c.JSON(http.StatusOK, entry)
}

type recurrenceRequest struct {
	Recurrence *domain.RecurrenceSpec `json:"recurrence"`
}

// setRecurrence replaces or, with a null recurrence, removes the entry's recurrence rule.
// PUT /api/v1/entries/:id/recurrence
func (r *Router) setRecurrence(c *gin.Context) {
	ctx := c.Request.Context()

	var req recurrenceRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := r.deps.Entries.GetByID(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err, "entry", "update")
		return
	}
	if err = entry.SetRecurrence(req.Recurrence); err != nil {
		handleError(c, err, "entry", "update")
		return
	}
	if err = r.deps.Entries.SetRecurrence(ctx, entry.ID, entry.Recurrence); err != nil {
		handleError(c, err, "entry", "update")
		return
	}
	c.JSON(http.StatusOK, entry)
}

type attributesRequest struct {
	Attributes []domain.Attribute `binding:"required" json:"attributes"`
}

// replaceAttributes sets the live attribute list submissions are checked against.
// PUT /api/v1/entries/:id/attributes
func (r *Router) replaceAttributes(c *gin.Context) {
	ctx := c.Request.Context()

	var req attributesRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := r.deps.Entries.GetByID(ctx, c.Param("id")); err != nil {
		handleError(c, err, "entry", "update")
		return
	}
	if err := r.deps.Entries.ReplaceAttributes(ctx, c.Param("id"), req.Attributes); err != nil {
		handleError(c, err, "attributes", "replace")
		return
	}
	c.JSON(http.StatusOK, gin.H{"attributes": req.Attributes, "count": len(req.Attributes)})
}

// forceRun flags a query entry for refresh on the next scheduler pass.
// POST /api/v1/entries/:id/force-run
func (r *Router) forceRun(c *gin.Context) {
	ctx := c.Request.Context()

	entry, err := r.deps.Entries.GetByID(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err, "entry", "get")
		return
	}
	if err = entry.CheckRefreshable(); err != nil {
		handleError(c, err, "entry", "update")
		return
	}
	if err = r.deps.Entries.SetForceRun(ctx, entry.ID); err != nil {
		handleError(c, err, "entry", "update")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"entry_id": c.Param("id"), "force_run": true})
}
