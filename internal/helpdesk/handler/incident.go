package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/biz"
	"github.com/kart-io/helpdesk-x/internal/helpdesk/store"
	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/internal/pkg/httputils"
	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/response"
)

// IncidentHandler handles incident admin HTTP requests.
type IncidentHandler struct {
	svc *biz.IncidentService
}

// NewIncidentHandler creates a new IncidentHandler.
func NewIncidentHandler(svc *biz.IncidentService) *IncidentHandler {
	return &IncidentHandler{svc: svc}
}

// List returns incidents, filterable by status, approval flag and session.
func (h *IncidentHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	opts := store.IncidentListOptions{
		SessionID: c.Query("session_id"),
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
	}
	if raw := c.Query("status"); raw != "" {
		status := model.Status(raw)
		if !status.Valid() {
			httputils.WriteResponse(c, errors.ErrValidation.WithMessagef("unknown status %q", raw), nil)
			return
		}
		opts.Status = status
	}
	if raw := c.Query("needs_kb_approval"); raw != "" {
		needs, err := strconv.ParseBool(raw)
		if err != nil {
			httputils.WriteResponse(c, errors.ErrValidation.WithMessage("needs_kb_approval must be a boolean"), nil)
			return
		}
		opts.NeedsKBApproval = &needs
	}

	list, err := h.svc.List(c.Request.Context(), opts)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, response.Page(list.Items, list.TotalCount, page, pageSize))
}

// Get returns one incident by id.
func (h *IncidentHandler) Get(c *gin.Context) {
	incident, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, incident)
}

// UpdateStatusRequest is the body of a status transition.
type UpdateStatusRequest struct {
	Status model.Status `json:"status" binding:"required"`
}

// UpdateStatus transitions an incident to a new status.
func (h *IncidentHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	incident, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, incident)
}

// AdminMessageRequest is the body of an admin note update. An empty
// message clears the note, the stock message for the status shows again.
type AdminMessageRequest struct {
	Message string `json:"message"`
}

// SetAdminMessage overwrites the admin note on an incident.
func (h *IncidentHandler) SetAdminMessage(c *gin.Context) {
	var req AdminMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	incident, err := h.svc.SetAdminMessage(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, incident)
}

// Delete removes an incident permanently.
func (h *IncidentHandler) Delete(c *gin.Context) {
	incidentID := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), incidentID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, gin.H{"incident_id": incidentID, "deleted": true})
}

// Stats returns the incident dashboard summary.
func (h *IncidentHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, stats)
}

// PendingApproval lists open incidents waiting for a knowledge base decision.
func (h *IncidentHandler) PendingApproval(c *gin.Context) {
	list, err := h.svc.PendingApproval(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, list)
}
