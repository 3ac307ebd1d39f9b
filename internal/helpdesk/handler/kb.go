package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/biz"
	"github.com/kart-io/helpdesk-x/internal/pkg/httputils"
	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/response"
)

// syncTimeout bounds a full knowledge base resynchronization. Re-embedding
// every entry can take a while on a cold model.
const syncTimeout = 5 * time.Minute

// KBHandler handles knowledge base admin HTTP requests.
type KBHandler struct {
	engine *biz.SyncEngine
}

// NewKBHandler creates a new KBHandler.
func NewKBHandler(engine *biz.SyncEngine) *KBHandler {
	return &KBHandler{engine: engine}
}

// ApproveRequest is the body of a knowledge base approval.
type ApproveRequest struct {
	SolutionSteps string `json:"solution_steps" binding:"required"`
}

// Approve turns an open incident into a knowledge base entry.
func (h *KBHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	entry, err := h.engine.Approve(c.Request.Context(), c.Param("incident_id"), req.SolutionSteps)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, entry)
}

// Reject clears the approval flag of an incident.
func (h *KBHandler) Reject(c *gin.Context) {
	incidentID := c.Param("incident_id")
	if err := h.engine.Reject(c.Request.Context(), incidentID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, gin.H{"incident_id": incidentID, "rejected": true})
}

// List returns knowledge base entries with pagination.
func (h *KBHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	list, err := h.engine.Entries(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, response.Page(list.Items, list.TotalCount, page, pageSize))
}

// Get returns one knowledge base entry.
func (h *KBHandler) Get(c *gin.Context) {
	entry, err := h.engine.Entry(c.Request.Context(), c.Param("kb_id"))
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, entry)
}

// Remove deletes an entry from the record store, the export file and the
// vector index.
func (h *KBHandler) Remove(c *gin.Context) {
	kbID := c.Param("kb_id")
	if err := h.engine.Remove(c.Request.Context(), kbID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, gin.H{"kb_id": kbID, "removed": true})
}

// ForceSync rebuilds everything from the flat text export.
func (h *KBHandler) ForceSync(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), syncTimeout)
	defer cancel()

	report, err := h.engine.ForceSync(ctx)
	if err != nil {
		// A partial sync still carries a useful report.
		if report != nil {
			httputils.WriteResponse(c, nil, response.ErrorWithData(
				errors.ErrSyncInconsistency.Code, err.Error(), report))
			return
		}
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, report)
}

// SyncStatus reports entry counts across the three representations.
func (h *KBHandler) SyncStatus(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, status)
}
