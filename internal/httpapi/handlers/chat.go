package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/agriassist/agri-platform/internal/chat"
	"github.com/agriassist/agri-platform/internal/common"
	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
}

// StreamChat is the chat endpoint: it responds with a chunked plain-text
// stream of reply fragments. Busy and fallback outcomes arrive as ordinary
// fragments; fatal failures as a single "[ERROR] ..." fragment.
func (h *Handler) StreamChat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.Messages) == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "messages required")
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)

	ctx := c.Request.Context()
	chunks, errs := h.ChatSvc.StreamReply(ctx, uid, chat.StreamRequest{ID: req.ID, Messages: req.Messages})

	for chunk := range chunks {
		if _, err := io.WriteString(c.Writer, chunk); err != nil {
			// client went away; the service releases the lock on ctx cancel
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	// errs carries at most one classified error and is closed with the stream
	if err := <-errs; err != nil {
		fmt.Fprintf(c.Writer, "[ERROR] %v", err)
		if canFlush {
			flusher.Flush()
		}
	}
}
