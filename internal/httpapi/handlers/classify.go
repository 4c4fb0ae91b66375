package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/agriassist/agri-platform/internal/classify"
	"github.com/agriassist/agri-platform/internal/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubmitClassification accepts a multipart pest image, stores a queued job
// and publishes it for the worker.
func (h *Handler) SubmitClassification(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10010, "no image provided")
		return
	}
	if file.Size > classify.MaxImageSize {
		common.Fail(c, http.StatusBadRequest, 10012, "image exceeds 20 MB limit")
		return
	}

	f, err := file.Open()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to read image")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, classify.MaxImageSize+1))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to read image")
		return
	}

	job, err := h.ClassifySvc.Submit(c.Request.Context(), uid, file.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, classify.ErrUnsupportedFormat):
			common.Fail(c, http.StatusBadRequest, 10011, err.Error())
		case errors.Is(err, classify.ErrImageTooLarge):
			common.Fail(c, http.StatusBadRequest, 10012, err.Error())
		default:
			log.Printf("[classify] submit failed uid=%d err=%v", uid, err)
			common.Fail(c, http.StatusInternalServerError, 50011, "failed to create classification job")
		}
		return
	}

	if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
		log.Printf("[classify] publish failed uid=%d job_id=%s err=%v", uid, job.ID, err)
		common.Fail(c, http.StatusInternalServerError, 50012, "enqueue failed")
		return
	}

	common.OK(c, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) GetClassificationJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10013, "job_id required")
		return
	}

	j, err := h.ClassifySvc.Get(c.Request.Context(), jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{"job": j})
}
