package chat

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the persisted transcript plus metadata for one chat
// session. JSON names match the stored record; listing, sharing and deletion
// all read this shape.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    uint64    `json:"userId"`
	CreatedAt int64     `json:"createdAt"` // milliseconds since epoch
	Path      string    `json:"path"`
	Messages  []Message `json:"messages"`
	SharePath string    `json:"sharePath,omitempty"`
}
