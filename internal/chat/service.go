package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/agriassist/agri-platform/internal/ai"
	"github.com/agriassist/agri-platform/internal/common"
)

const (
	// lockTTL bounds how long a crashed run can hold the per-user lock.
	lockTTL     = 60 * time.Second
	titleMaxLen = 100

	busyNotice = "[Error] Another request is in progress."
)

var ErrNotFound = errors.New("conversation not found")

// Store is the key-value surface the pipeline needs: an atomic lease and the
// conversation records.
type Store interface {
	AcquireLock(ctx context.Context, userID uint64, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, userID uint64) error

	SaveConversation(ctx context.Context, conv *Conversation) error
	IndexConversation(ctx context.Context, userID uint64, conversationID string, createdAt int64) error
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	ListConversations(ctx context.Context, userID uint64) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, userID uint64, conversationID string) error
	ClearConversations(ctx context.Context, userID uint64) (int, error)
}

type Service struct {
	store    Store
	provider ai.StreamProvider
}

func NewService(store Store, provider ai.StreamProvider) *Service {
	return &Service{store: store, provider: provider}
}

type StreamRequest struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// StreamReply runs one generation for userID and streams the reply.
//
// Fragments arrive on the first channel in provider order. A held lock
// produces a single informational fragment and a normal close. Quota
// exhaustion upstream is masked with a canned advisory and the run is
// persisted as if it succeeded. Any other failure releases the lock, sends
// one error, and persists nothing. Both channels are closed when the run
// ends.
func (s *Service) StreamReply(ctx context.Context, userID uint64, req StreamRequest) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if len(req.Messages) == 0 {
			errs <- errors.New("messages must not be empty")
			return
		}

		acquired, err := s.store.AcquireLock(ctx, userID, lockTTL)
		if err != nil {
			errs <- fmt.Errorf("acquire lock: %w", err)
			return
		}
		if !acquired {
			// Another generation is in flight for this user. Not an error:
			// the existing lock (and its expiry) stays untouched.
			chunks <- busyNotice
			return
		}

		send := func(c string) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var full strings.Builder
		pChunks, pErrs := s.provider.StreamChat(ctx, providerMessages(req.Messages))
		for c := range pChunks {
			full.WriteString(c)
			if !send(c) {
				// Caller went away mid-stream; nothing to persist, but the
				// lock must not leak past its TTL.
				s.releaseLock(ctx, userID)
				return
			}
		}

		var genErr error
		select {
		case genErr = <-pErrs:
		default:
		}

		if genErr != nil {
			if !ai.IsQuotaExhausted(genErr) {
				s.releaseLock(ctx, userID)
				errs <- genErr
				return
			}
			log.Printf("[chat] quota exhausted for user=%d, serving fallback: %v", userID, genErr)
			text := ai.FallbackResponse()
			full.Reset()
			full.WriteString(text)
			if !send(text) {
				s.releaseLock(ctx, userID)
				return
			}
		}

		s.persist(ctx, userID, req, full.String())
		s.releaseLock(ctx, userID)
	}()

	return chunks, errs
}

func providerMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// persist writes the conversation record and its index entry. Failures are
// logged only: the reply already reached the client and must not be
// retracted.
func (s *Service) persist(ctx context.Context, userID uint64, req StreamRequest, reply string) {
	id := req.ID
	if id == "" {
		var err error
		if id, err = common.NewULID(); err != nil {
			log.Printf("[chat] generate conversation id: %v", err)
			return
		}
	}
	createdAt := time.Now().UnixMilli()
	conv := &Conversation{
		ID:        id,
		Title:     truncateTitle(req.Messages[0].Content),
		UserID:    userID,
		CreatedAt: createdAt,
		Path:      "/chat/c/" + id,
		Messages:  append(append([]Message(nil), req.Messages...), Message{Role: RoleAssistant, Content: reply}),
	}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		log.Printf("[chat] persist conversation %s: %v", id, err)
		return
	}
	if err := s.store.IndexConversation(ctx, userID, id, createdAt); err != nil {
		log.Printf("[chat] index conversation %s: %v", id, err)
	}
}

// releaseLock must run on every exit path and survive caller disconnect; a
// failed delete is logged and left to the TTL.
func (s *Service) releaseLock(ctx context.Context, userID uint64) {
	if err := s.store.ReleaseLock(context.WithoutCancel(ctx), userID); err != nil {
		log.Printf("[chat] release lock user=%d: %v", userID, err)
	}
}

func truncateTitle(content string) string {
	r := []rune(content)
	if len(r) > titleMaxLen {
		return string(r[:titleMaxLen])
	}
	return content
}

func (s *Service) List(ctx context.Context, userID uint64) ([]*Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID uint64, id string) (*Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (s *Service) Remove(ctx context.Context, userID uint64, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, userID, id)
}

func (s *Service) Clear(ctx context.Context, userID uint64) (int, error) {
	return s.store.ClearConversations(ctx, userID)
}

// Share marks a conversation shareable and returns the updated record.
func (s *Service) Share(ctx context.Context, userID uint64, id string) (*Conversation, error) {
	conv, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	conv.SharePath = "/share/" + conv.ID
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetShared returns a conversation only if it has been shared; ownership is
// not required.
func (s *Service) GetShared(ctx context.Context, id string) (*Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.SharePath == "" {
		return nil, ErrNotFound
	}
	return conv, nil
}
