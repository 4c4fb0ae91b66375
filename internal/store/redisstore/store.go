package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/agriassist/agri-platform/internal/chat"
	"github.com/redis/go-redis/v9"
)

// Store keeps conversations as hashes plus a per-user sorted index, and
// implements the per-user processing lease with SET NX EX.
//
// Key layout:
//
//	user:chat:processing:{userID}  lock marker, TTL-bounded
//	chat:{conversationID}          conversation hash
//	user:chat:{userID}             zset of chat:{id} scored by createdAt
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func lockKey(userID uint64) string {
	return "user:chat:processing:" + strconv.FormatUint(userID, 10)
}

func conversationKey(id string) string {
	return "chat:" + id
}

func indexKey(userID uint64) string {
	return "user:chat:" + strconv.FormatUint(userID, 10)
}

// AcquireLock is an atomic set-if-absent with expiry. A false return means
// another run holds the lease; its TTL is left as-is.
func (s *Store) AcquireLock(ctx context.Context, userID uint64, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(userID), "1", ttl).Result()
}

func (s *Store) ReleaseLock(ctx context.Context, userID uint64) error {
	return s.rdb.Del(ctx, lockKey(userID)).Err()
}

// SaveConversation overwrites the hash record; repeated saves of the same id
// are last-write-wins. Messages are embedded as JSON in a single field.
func (s *Store) SaveConversation(ctx context.Context, conv *chat.Conversation) error {
	msgs, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	fields := map[string]any{
		"id":        conv.ID,
		"title":     conv.Title,
		"userId":    strconv.FormatUint(conv.UserID, 10),
		"createdAt": strconv.FormatInt(conv.CreatedAt, 10),
		"path":      conv.Path,
		"messages":  string(msgs),
	}
	if conv.SharePath != "" {
		fields["sharePath"] = conv.SharePath
	}
	return s.rdb.HSet(ctx, conversationKey(conv.ID), fields).Err()
}

func (s *Store) IndexConversation(ctx context.Context, userID uint64, conversationID string, createdAt int64) error {
	return s.rdb.ZAdd(ctx, indexKey(userID), redis.Z{
		Score:  float64(createdAt),
		Member: conversationKey(conversationID),
	}).Err()
}

// GetConversation returns nil, nil when the record does not exist.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	m, err := s.rdb.HGetAll(ctx, conversationKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return parseConversation(m)
}

// ListConversations returns the user's conversations newest-first.
func (s *Store) ListConversations(ctx context.Context, userID uint64) ([]*chat.Conversation, error) {
	keys, err := s.rdb.ZRevRange(ctx, indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(keys))
	for _, k := range keys {
		cmds = append(cmds, pipe.HGetAll(ctx, k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make([]*chat.Conversation, 0, len(keys))
	for _, cmd := range cmds {
		m, err := cmd.Result()
		if err != nil || len(m) == 0 {
			continue
		}
		conv, err := parseConversation(m)
		if err != nil {
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

func (s *Store) DeleteConversation(ctx context.Context, userID uint64, conversationID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, conversationKey(conversationID))
	pipe.ZRem(ctx, indexKey(userID), conversationKey(conversationID))
	_, err := pipe.Exec(ctx)
	return err
}

// ClearConversations removes every record referenced by the user's index and
// returns how many were deleted.
func (s *Store) ClearConversations(ctx context.Context, userID uint64) (int, error) {
	keys, err := s.rdb.ZRange(ctx, indexKey(userID), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
		pipe.ZRem(ctx, indexKey(userID), k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func parseConversation(m map[string]string) (*chat.Conversation, error) {
	userID, err := strconv.ParseUint(m["userId"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse userId: %w", err)
	}
	createdAt, err := strconv.ParseInt(m["createdAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse createdAt: %w", err)
	}
	var msgs []chat.Message
	if raw := m["messages"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	return &chat.Conversation{
		ID:        m["id"],
		Title:     m["title"],
		UserID:    userID,
		CreatedAt: createdAt,
		Path:      m["path"],
		Messages:  msgs,
		SharePath: m["sharePath"],
	}, nil
}
