// Package handler provides HTTP handlers for the helpdesk service.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/biz"
	"github.com/kart-io/helpdesk-x/internal/pkg/httputils"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

// chatTimeout bounds one chat turn end to end, including embedding and
// vector search.
const chatTimeout = 60 * time.Second

// ChatHandler handles chat HTTP requests.
type ChatHandler struct {
	conversation *biz.ConversationService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(conversation *biz.ConversationService) *ChatHandler {
	return &ChatHandler{conversation: conversation}
}

// ChatRequest is one user turn.
type ChatRequest struct {
	// SessionID continues an existing conversation. Empty starts a new one.
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// Chat processes one conversation turn.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	reply, err := h.conversation.Handle(ctx, req.SessionID, req.Message)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteResponse(c, errors.ErrRequestTimeout.WithMessage(
				"the assistant took too long to respond, please try again"), nil)
			return
		}
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, reply)
}

// DeleteSession ends a conversation and forgets its state.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage("session id is required"), nil)
		return
	}

	if err := h.conversation.ClearSession(c.Request.Context(), sessionID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, gin.H{"session_id": sessionID, "cleared": true})
}
