package handlers

import (
	"github.com/agriassist/agri-platform/internal/common"
	"github.com/gin-gonic/gin"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}
