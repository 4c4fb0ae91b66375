package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agriassist/agri-platform/internal/ai"
	"github.com/agriassist/agri-platform/internal/chat"
	"github.com/agriassist/agri-platform/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
)

type stubStore struct {
	mu    sync.Mutex
	locks map[uint64]bool
	saved map[string]*chat.Conversation
}

func newStubStore() *stubStore {
	return &stubStore{
		locks: make(map[uint64]bool),
		saved: make(map[string]*chat.Conversation),
	}
}

func (s *stubStore) AcquireLock(ctx context.Context, userID uint64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[userID] {
		return false, nil
	}
	s.locks[userID] = true
	return true, nil
}

func (s *stubStore) ReleaseLock(ctx context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, userID)
	return nil
}

func (s *stubStore) SaveConversation(ctx context.Context, conv *chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conv
	s.saved[conv.ID] = &cp
	return nil
}

func (s *stubStore) IndexConversation(ctx context.Context, userID uint64, id string, createdAt int64) error {
	return nil
}

func (s *stubStore) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.saved[id]
	if !ok {
		return nil, nil
	}
	cp := *conv
	return &cp, nil
}

func (s *stubStore) ListConversations(ctx context.Context, userID uint64) ([]*chat.Conversation, error) {
	return nil, nil
}

func (s *stubStore) DeleteConversation(ctx context.Context, userID uint64, id string) error {
	return nil
}

func (s *stubStore) ClearConversations(ctx context.Context, userID uint64) (int, error) {
	return 0, nil
}

func (s *stubStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type scriptedProvider struct {
	chunks []string
	err    error
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	chunks := make(chan string, len(p.chunks)+1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range p.chunks {
			chunks <- c
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return chunks, errs
}

func newChatRouter(provider ai.StreamProvider) (*gin.Engine, *stubStore) {
	gin.SetMode(gin.TestMode)
	store := newStubStore()
	h := &Handler{ChatSvc: chat.NewService(store, provider)}
	r := gin.New()
	r.POST("/api/chat", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uint64(7))
		h.StreamChat(c)
	})
	return r, store
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestStreamChat_BodyIsConcatenatedFragments(t *testing.T) {
	r, store := newChatRouter(&scriptedProvider{chunks: []string{"Rotate", " your", " crops."}})

	w := postChat(r, `{"messages":[{"role":"user","content":"soil health?"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	if got := w.Body.String(); got != "Rotate your crops." {
		t.Fatalf("unexpected body: %q", got)
	}
	if store.savedCount() != 1 {
		t.Fatalf("expected one persisted conversation, got %d", store.savedCount())
	}
}

func TestStreamChat_FatalErrorBody(t *testing.T) {
	r, store := newChatRouter(&scriptedProvider{err: errors.New("network timeout")})

	w := postChat(r, `{"messages":[{"role":"user","content":"hi"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("stream already started, expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "[ERROR] network timeout" {
		t.Fatalf("expected single error fragment, got %q", got)
	}
	if store.savedCount() != 0 {
		t.Fatalf("fatal path must not persist")
	}
}

func TestStreamChat_BusyBody(t *testing.T) {
	r, store := newChatRouter(&scriptedProvider{chunks: []string{"never"}})
	store.locks[7] = true

	w := postChat(r, `{"messages":[{"role":"user","content":"hi"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "[Error] Another request is in progress." {
		t.Fatalf("unexpected busy body: %q", got)
	}
	if store.savedCount() != 0 {
		t.Fatalf("busy path must not persist")
	}
}

func TestStreamChat_RejectsBadRequests(t *testing.T) {
	r, _ := newChatRouter(&scriptedProvider{})

	if w := postChat(r, `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", w.Code)
	}
	if w := postChat(r, `{"messages":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty messages, got %d", w.Code)
	}
}
