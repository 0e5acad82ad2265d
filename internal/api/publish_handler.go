package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// listChannels returns every publish channel of an entry.
// GET /api/v1/entries/:id/channels
func (r *Router) listChannels(c *gin.Context) {
	channels, err := r.deps.Channels.ListByEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, "channels", "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels, "count": len(channels)})
}

type createChannelRequest struct {
	Backend  domain.BackendKind `binding:"required" json:"backend"`
	Enabled  *bool              `json:"enabled"`
	Settings json.RawMessage    `json:"settings"`
}

// createChannel attaches a publish backend to an entry. Channels are enabled by default.
// POST /api/v1/entries/:id/channels
func (r *Router) createChannel(c *gin.Context) {
	ctx := c.Request.Context()

	var req createChannelRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := r.deps.Entries.GetByID(ctx, c.Param("id")); err != nil {
		handleError(c, err, "entry", "get")
		return
	}

	enabled := req.Enabled == nil || *req.Enabled
	ch, err := domain.NewPublishChannel(c.Param("id"), req.Backend, enabled, req.Settings)
	if err != nil {
		handleError(c, err, "channel", "create")
		return
	}
	if err = r.deps.Channels.Create(ctx, ch); err != nil {
		handleError(c, err, "channel", "create")
		return
	}
	c.JSON(http.StatusCreated, ch)
}

type publishRequest struct {
	SymbologyOnly bool    `json:"symbology_only"`
	SubmitterID   *string `json:"submitter_id"`
}

// publish enqueues a publish job for an entry. It is rejected while another
// job for the entry is waiting or running, and when no channel is enabled.
// POST /api/v1/entries/:id/publish
func (r *Router) publish(c *gin.Context) {
	ctx := c.Request.Context()

	var req publishRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	entry, err := r.deps.Entries.GetByID(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err, "entry", "get")
		return
	}

	active, err := r.deps.Publisher.HasActiveJob(ctx, entry.ID)
	if err != nil {
		handleError(c, err, "publish job", "check")
		return
	}
	if active {
		c.JSON(http.StatusConflict, gin.H{"error": "A publish job for this entry is already queued or running"})
		return
	}

	pushed, err := r.deps.Publisher.Push(ctx, entry, req.SymbologyOnly, req.SubmitterID)
	if err != nil {
		handleError(c, err, "publish job", "create")
		return
	}
	if !pushed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Entry has no enabled publish channel"})
		return
	}

	r.log.Info("Publish requested",
		logger.EntryID(entry.ID),
		logger.Bool("symbology_only", req.SymbologyOnly),
	)
	c.JSON(http.StatusAccepted, gin.H{"entry_id": entry.ID, "queued": true})
}

// GET /api/v1/jobs/:id
func (r *Router) getJob(c *gin.Context) {
	job, err := r.deps.Jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, "publish job", "get")
		return
	}
	c.JSON(http.StatusOK, job)
}

// GET /api/v1/jobs/stats
func (r *Router) jobStats(c *gin.Context) {
	stats, err := r.deps.Jobs.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err, "publish job stats", "get")
		return
	}
	c.JSON(http.StatusOK, stats)
}
