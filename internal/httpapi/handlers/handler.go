package handlers

import (
	"context"

	"github.com/agriassist/agri-platform/internal/ai"
	"github.com/agriassist/agri-platform/internal/chat"
	"github.com/agriassist/agri-platform/internal/classify"
	"github.com/agriassist/agri-platform/internal/config"
	"github.com/agriassist/agri-platform/internal/httpapi/middleware"
	"github.com/agriassist/agri-platform/internal/store/rabbitmq"
	"github.com/agriassist/agri-platform/internal/store/redisstore"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Rabbit      *rabbitmq.Publisher
	ChatSvc     *chat.Service
	ClassifySvc *classify.Service
}

func NewHandler(ctx context.Context, db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) (*Handler, error) {
	provider, err := ai.NewGeminiProvider(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Redis:       rds,
		Rabbit:      rabbit,
		ChatSvc:     chat.NewService(rds, provider),
		ClassifySvc: classify.NewService(classify.NewRepo(db)),
	}, nil
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
