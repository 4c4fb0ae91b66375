package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/agriassist/agri-platform/internal/common"
	"github.com/agriassist/agri-platform/internal/config"
	"github.com/agriassist/agri-platform/internal/httpapi/handlers"
	"github.com/agriassist/agri-platform/internal/httpapi/middleware"
	"github.com/agriassist/agri-platform/internal/store/rabbitmq"
	"github.com/agriassist/agri-platform/internal/store/redisstore"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func NewRouter(ctx context.Context, db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) (*gin.Engine, error) {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h, err := handlers.NewHandler(ctx, db, cfg, rds, rabbit)
	if err != nil {
		return nil, err
	}

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)
	api.GET("/share/:id", h.GetSharedConversation)

	authGroup := api.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/auth/session", h.Session)

	// profile
	authGroup.GET("/user", h.GetProfile)
	authGroup.PUT("/user", h.UpdateProfile)

	// chat (JWT required)
	authGroup.POST("/chat", h.StreamChat)
	authGroup.GET("/chats", h.ListConversations)
	authGroup.GET("/chats/:id", h.GetConversation)
	authGroup.DELETE("/chats/:id", h.RemoveConversation)
	authGroup.DELETE("/chats", h.ClearConversations)
	authGroup.POST("/chats/:id/share", h.ShareConversation)

	// pest classification
	authGroup.POST("/classify", h.SubmitClassification)
	authGroup.GET("/classify/jobs/:job_id", h.GetClassificationJob)

	return r, nil
}
