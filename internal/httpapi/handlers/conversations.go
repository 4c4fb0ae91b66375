package handlers

import (
	"errors"
	"net/http"

	"github.com/agriassist/agri-platform/internal/chat"
	"github.com/agriassist/agri-platform/internal/common"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListConversations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	convs, err := h.ChatSvc.List(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []*chat.Conversation{}
	}
	common.OK(c, gin.H{"chats": convs})
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	conv, err := h.ChatSvc.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load conversation")
		return
	}
	common.OK(c, gin.H{"chat": conv})
}

func (h *Handler) RemoveConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.ChatSvc.Remove(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to remove conversation")
		return
	}
	common.OK(c, nil)
}

func (h *Handler) ClearConversations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	removed, err := h.ChatSvc.Clear(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to clear conversations")
		return
	}
	common.OK(c, gin.H{"removed": removed})
}

func (h *Handler) ShareConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	conv, err := h.ChatSvc.Share(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to share conversation")
		return
	}
	common.OK(c, gin.H{"chat": conv})
}

// GetSharedConversation is public: anyone with the link can read a shared
// transcript.
func (h *Handler) GetSharedConversation(c *gin.Context) {
	conv, err := h.ChatSvc.GetShared(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load conversation")
		return
	}
	common.OK(c, gin.H{"chat": conv})
}
