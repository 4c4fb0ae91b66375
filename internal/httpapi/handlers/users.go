package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/agriassist/agri-platform/internal/auth"
	"github.com/agriassist/agri-platform/internal/common"
	"github.com/agriassist/agri-platform/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	name := req.Name
	if name == "" {
		name = strings.SplitN(req.Email, "@", 2)[0]
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         name,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "failed to create user (maybe email already exists)")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"user":  user,
		"token": token,
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", req.Email).
		First(&user).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid email or password")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid email or password")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"user":  user,
		"token": token,
	})
}

// Session returns the caller's identity, mirroring the session endpoint the
// web client polls.
func (h *Handler) Session(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}

	common.OK(c, gin.H{"user": user})
}

func (h *Handler) GetProfile(c *gin.Context) {
	h.Session(c)
}

type updateProfileReq struct {
	Name              *string `json:"name"`
	Username          *string `json:"userName"`
	Image             *string `json:"image"`
	PestImage         *string `json:"pestImage"`
	District          *string `json:"userDistrict"`
	ChatbotPreference *string `json:"chatbotPreference"`
	PageShown         *bool   `json:"pageShown"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Username != nil {
		updates["username"] = *req.Username
	}
	if req.Image != nil {
		updates["image"] = *req.Image
	}
	if req.PestImage != nil {
		updates["pest_image"] = *req.PestImage
	}
	if req.District != nil {
		updates["district"] = *req.District
	}
	if req.ChatbotPreference != nil {
		updates["chatbot_preference"] = *req.ChatbotPreference
	}
	if req.PageShown != nil {
		updates["page_shown"] = *req.PageShown
	}
	if len(updates) == 0 {
		common.Fail(c, http.StatusBadRequest, 10005, "no fields to update")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", uid).
		Updates(updates).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{"user": user})
}
