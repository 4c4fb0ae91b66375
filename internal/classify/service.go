package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agriassist/agri-platform/internal/common"
)

// Inline-data limits per the Gemini image-understanding docs.
const MaxImageSize = 20 * 1024 * 1024

var supportedFormats = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

var (
	ErrUnsupportedFormat = errors.New("unsupported image format (PNG, JPEG, WEBP, HEIC, HEIF)")
	ErrImageTooLarge     = fmt.Errorf("image exceeds %d byte limit", MaxImageSize)
)

// Classifier is the vision call the worker needs from the AI provider.
type Classifier interface {
	ClassifyImage(ctx context.Context, mimeType string, data []byte) (string, error)
}

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// Submit validates the image and stores a queued job. Publishing to the queue
// is the caller's responsibility.
func (s *Service) Submit(ctx context.Context, userID uint64, mimeType string, image []byte) (*Job, error) {
	if !supportedFormats[mimeType] {
		return nil, ErrUnsupportedFormat
	}
	if len(image) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(image) == 0 {
		return nil, errors.New("no image provided")
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:        id,
		UserID:    userID,
		ImageMime: mimeType,
		Image:     image,
		Status:    JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

// Process runs one job to completion on the worker side.
func (s *Service) Process(ctx context.Context, classifier Classifier, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	content, err := classifier.ClassifyImage(ctx, job.ImageMime, job.Image)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	return s.repo.MarkJobSucceeded(ctx, jobID, normalizeResult(content))
}

// normalizeResult strips markdown code fences the model sometimes adds and
// guarantees the stored result is valid JSON.
func normalizeResult(content string) string {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if json.Valid([]byte(text)) {
		return text
	}
	wrapped, _ := json.Marshal(map[string]string{
		"pest_name":    "Unable to parse",
		"confidence":   "low",
		"raw_response": content,
	})
	return string(wrapped)
}
