package classify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Job{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeClassifier struct {
	content string
	err     error
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, mimeType string, data []byte) (string, error) {
	return f.content, f.err
}

func TestSubmit_CreatesQueuedJob(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))

	job, err := svc.Submit(context.Background(), 42, "image/jpeg", []byte("not-really-a-jpeg"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(job.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", job.ID)
	}
	if job.Status != JobQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}

	got, err := svc.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 42 || got.ImageMime != "image/jpeg" {
		t.Fatalf("unexpected stored job: %+v", got)
	}
}

func TestSubmit_RejectsBadInput(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	if _, err := svc.Submit(ctx, 1, "image/gif", []byte("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got: %v", err)
	}
	if _, err := svc.Submit(ctx, 1, "image/png", make([]byte, MaxImageSize+1)); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got: %v", err)
	}
	if _, err := svc.Submit(ctx, 1, "image/png", nil); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestProcess_SuccessStripsCodeFences(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	job, err := svc.Submit(ctx, 1, "image/png", []byte("img"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	fenced := "```json\n{\"pest_name\":\"Fall armyworm\",\"confidence\":\"high\"}\n```"
	if err := svc.Process(ctx, &fakeClassifier{content: fenced}, job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := svc.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != JobSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
	if got.Result == nil || *got.Result != `{"pest_name":"Fall armyworm","confidence":"high"}` {
		t.Fatalf("unexpected result: %v", got.Result)
	}
}

func TestProcess_WrapsNonJSONResult(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	job, err := svc.Submit(ctx, 1, "image/png", []byte("img"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Process(ctx, &fakeClassifier{content: "I think it is a locust"}, job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := svc.Get(ctx, job.ID)
	if got.Result == nil {
		t.Fatalf("expected wrapped result")
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(*got.Result), &m); err != nil {
		t.Fatalf("stored result must be valid JSON: %v", err)
	}
	if m["pest_name"] != "Unable to parse" || m["raw_response"] != "I think it is a locust" {
		t.Fatalf("unexpected wrapped result: %v", m)
	}
}

func TestProcess_FailureMarksJobFailed(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	ctx := context.Background()

	job, err := svc.Submit(ctx, 1, "image/png", []byte("img"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	upstream := errors.New("model unavailable")
	if err := svc.Process(ctx, &fakeClassifier{err: upstream}, job.ID); !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got: %v", err)
	}

	got, _ := svc.Get(ctx, job.ID)
	if got.Status != JobFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || *got.Error != "model unavailable" {
		t.Fatalf("unexpected error field: %v", got.Error)
	}
}
