package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"mia/apps/backend/internal/llm"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Message is one persisted turn with its pipeline bookkeeping.
type Message struct {
	Role             string
	Content          string
	ResponseType     ResponseType
	RedFlags         []string
	ProductIDs       []int64
	TokensUsed       int
	ProcessingTimeMs int64
	CreatedAt        time.Time
}

type Conversation struct {
	ID             string
	SessionID      string
	ProductContext *ProductContext
	HasEmergency   bool
	MessageCount   int
	LastMessageAt  time.Time
	CreatedAt      time.Time
}

// ConversationStore persists conversations. Every turn is written before the
// response is returned so the next message sees it in GetHistory.
type ConversationStore interface {
	// EnsureConversation returns id when it names an existing conversation,
	// otherwise it creates a new one and returns its id.
	EnsureConversation(ctx context.Context, id, sessionID string, product *ProductContext) (string, error)
	AppendMessage(ctx context.Context, conversationID string, msg Message) error
	// GetHistory returns every turn in creation order.
	GetHistory(ctx context.Context, conversationID string) ([]llm.Turn, error)
	MarkEmergency(ctx context.Context, conversationID string) error
	Touch(ctx context.Context, conversationID string) error
}

type memoryConversation struct {
	Conversation
	messages []Message
}

type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*memoryConversation
	now           func() time.Time
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string]*memoryConversation),
		now:           time.Now,
	}
}

func (s *MemoryConversationStore) EnsureConversation(ctx context.Context, id, sessionID string, product *ProductContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; ok && id != "" {
		return id, nil
	}
	now := s.now()
	newID := uuid.NewString()
	s.conversations[newID] = &memoryConversation{Conversation: Conversation{
		ID:             newID,
		SessionID:      sessionID,
		ProductContext: product,
		CreatedAt:      now,
		LastMessageAt:  now,
	}}
	return newID, nil
}

func (s *MemoryConversationStore) AppendMessage(ctx context.Context, conversationID string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	conv.messages = append(conv.messages, msg)
	return nil
}

func (s *MemoryConversationStore) GetHistory(ctx context.Context, conversationID string) ([]llm.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	turns := make([]llm.Turn, 0, len(conv.messages))
	for _, m := range conv.messages {
		turns = append(turns, llm.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

func (s *MemoryConversationStore) MarkEmergency(ctx context.Context, conversationID string) error {
	return s.update(ctx, conversationID, func(c *memoryConversation) {
		c.HasEmergency = true
	})
}

func (s *MemoryConversationStore) Touch(ctx context.Context, conversationID string) error {
	return s.update(ctx, conversationID, func(c *memoryConversation) {
		c.MessageCount++
		c.LastMessageAt = s.now()
	})
}

func (s *MemoryConversationStore) update(ctx context.Context, conversationID string, fn func(*memoryConversation)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	fn(conv)
	return nil
}

// Conversation returns a snapshot of a stored conversation and its messages.
func (s *MemoryConversationStore) Conversation(id string) (Conversation, []Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return Conversation{}, nil, false
	}
	return conv.Conversation, append([]Message(nil), conv.messages...), true
}
